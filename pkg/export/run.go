package export

import (
	"context"
	"errors"
	"fmt"
)

// Run exports paths into sink within one session. The sink is closed and the
// session ended on every return path, so no UID stays redirected after Run.
func (r *Remapper) Run(ctx context.Context, paths []string, sink Sink) (err error) {
	r.Begin()
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close sink: %w", closeErr))
		}
		if endErr := r.End(); endErr != nil {
			err = errors.Join(err, endErr)
		}
		if err == nil {
			r.logger.Info("export complete", "session", r.Session(), "artifacts", len(paths))
		}
	}()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		artifact, err := r.Process(path)
		if err != nil {
			return err
		}
		if err := sink.Put(ctx, artifact); err != nil {
			return fmt.Errorf("export %s: %w", artifact.Name(), err)
		}
	}
	return nil
}
