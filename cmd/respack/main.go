/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/respack/cmd/respack/cmd"

func main() {
	cmd.Execute()
}
