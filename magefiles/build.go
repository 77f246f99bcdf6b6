//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the demo binary.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/lodestone", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the unit tests with the race detector.
func (Build) Test() error {
	if _, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs go vet across the module.
func (Build) Vet() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}
