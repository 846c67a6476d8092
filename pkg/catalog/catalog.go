// Package catalog contains the concrete resource types shipped with respack.
// They cover every reference strategy and are what the CLI and API load.
package catalog

import (
	"github.com/ssargent/respack/pkg/ref"
	"github.com/ssargent/respack/pkg/resource"
)

// Class identities
const (
	ClassItem      = "Item"
	ClassEffect    = "Effect"
	ClassInventory = "Inventory"
	ClassLoadout   = "Loadout"
)

// Register adds every catalog class to reg
func Register(reg *resource.Registry) error {
	for class, factory := range map[string]resource.Factory{
		ClassItem:      func() resource.Resource { return &Item{} },
		ClassEffect:    func() resource.Resource { return &Effect{} },
		ClassInventory: func() resource.Resource { return &Inventory{} },
		ClassLoadout:   func() resource.Resource { return &Loadout{} },
	} {
		if err := reg.Register(class, factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a class registry preloaded with the catalog
func NewRegistry() *resource.Registry {
	reg := resource.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}

// Item is a leaf resource with scalar fields only
type Item struct {
	resource.Base
	Name   string
	Weight float64
	Count  int64
	Tags   []string
	Icon   []byte
}

func (i *Item) ClassName() string { return ClassItem }

func (i *Item) EncodeFields(*resource.Encoder) (resource.Fields, error) {
	tags := make([]any, len(i.Tags))
	for n, t := range i.Tags {
		tags[n] = t
	}
	return resource.Fields{
		"name":   i.Name,
		"weight": i.Weight,
		"count":  i.Count,
		"tags":   tags,
		"icon":   i.Icon,
	}, nil
}

func (i *Item) DecodeFields(dec *resource.Decoder, f resource.Fields) error {
	var err error
	if i.Name, err = f.String("name"); err != nil {
		return dec.Fail("name", err)
	}
	if i.Weight, err = f.Float("weight"); err != nil {
		return dec.Fail("weight", err)
	}
	if i.Count, err = f.Int("count"); err != nil {
		return dec.Fail("count", err)
	}
	if i.Tags, err = f.StringSlice("tags"); err != nil {
		return dec.Fail("tags", err)
	}
	if i.Icon, err = f.Bytes("icon"); err != nil {
		return dec.Fail("icon", err)
	}
	return nil
}

// Effect is only ever stored bundled inside another resource
type Effect struct {
	resource.Base
	Kind  string
	Power int64
}

func (e *Effect) ClassName() string { return ClassEffect }

func (e *Effect) EncodeFields(*resource.Encoder) (resource.Fields, error) {
	return resource.Fields{"kind": e.Kind, "power": e.Power}, nil
}

func (e *Effect) DecodeFields(dec *resource.Decoder, f resource.Fields) error {
	var err error
	if e.Kind, err = f.String("kind"); err != nil {
		return dec.Fail("kind", err)
	}
	if e.Power, err = f.Int("power"); err != nil {
		return dec.Fail("power", err)
	}
	return nil
}

// Inventory nests its items inline
type Inventory struct {
	resource.Base
	Owner    string
	Aura     *Effect          // bundled, required
	Featured *Item            // bundled, optional
	Items    []*Item          // bundled sequence
	Slots    map[string]*Item // bundled mapping
}

func (inv *Inventory) ClassName() string { return ClassInventory }

func (inv *Inventory) EncodeFields(enc *resource.Encoder) (resource.Fields, error) {
	f := resource.Fields{"owner": inv.Owner}

	var err error
	if f["aura"], err = ref.Bundled(enc, inv.Aura); err != nil {
		return nil, err
	}
	if f["featured"], err = ref.BundledOptional(enc, inv.Featured); err != nil {
		return nil, err
	}
	if f["items"], err = ref.BundledSlice(enc, inv.Items); err != nil {
		return nil, err
	}
	if f["slots"], err = ref.BundledMap(enc, inv.Slots); err != nil {
		return nil, err
	}
	return f, nil
}

func (inv *Inventory) DecodeFields(dec *resource.Decoder, f resource.Fields) error {
	var err error
	if inv.Owner, err = f.String("owner"); err != nil {
		return dec.Fail("owner", err)
	}
	if inv.Aura, err = ref.DecodeBundled[Effect](dec, f, "aura"); err != nil {
		return err
	}
	if inv.Featured, err = ref.DecodeBundledOptional[Item](dec, f, "featured"); err != nil {
		return err
	}
	if inv.Items, err = ref.DecodeBundledSlice[Item](dec, f, "items"); err != nil {
		return err
	}
	if inv.Slots, err = ref.DecodeBundledMap[Item](dec, f, "slots"); err != nil {
		return err
	}
	return nil
}

// Loadout points at separately stored resources
type Loadout struct {
	resource.Base
	Name      string
	Primary   *Item                 // external, required
	Secondary *Item                 // external, optional
	Pack      []*Item               // external sequence
	Stash     map[string]*Inventory // external mapping
}

func (l *Loadout) ClassName() string { return ClassLoadout }

func (l *Loadout) EncodeFields(enc *resource.Encoder) (resource.Fields, error) {
	f := resource.Fields{"name": l.Name}

	var err error
	if f["primary"], err = ref.External(enc, l.Primary); err != nil {
		return nil, err
	}
	if f["secondary"], err = ref.ExternalOptional(enc, l.Secondary); err != nil {
		return nil, err
	}
	if f["pack"], err = ref.ExternalSlice(enc, l.Pack); err != nil {
		return nil, err
	}
	if f["stash"], err = ref.ExternalMap(enc, l.Stash); err != nil {
		return nil, err
	}
	return f, nil
}

func (l *Loadout) DecodeFields(dec *resource.Decoder, f resource.Fields) error {
	var err error
	if l.Name, err = f.String("name"); err != nil {
		return dec.Fail("name", err)
	}
	if l.Primary, err = ref.DecodeExternal[*Item](dec, f, "primary"); err != nil {
		return err
	}
	if l.Secondary, err = ref.DecodeExternalOptional[*Item](dec, f, "secondary"); err != nil {
		return err
	}
	if l.Pack, err = ref.DecodeExternalSlice[*Item](dec, f, "pack"); err != nil {
		return err
	}
	if l.Stash, err = ref.DecodeExternalMap[*Inventory](dec, f, "stash"); err != nil {
		return err
	}
	return nil
}
