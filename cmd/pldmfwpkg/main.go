// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pldmfwpkg unpacks and repacks DMTF DSP0267 PLDM firmware update packages,
// and can deliberately corrupt one for downstream validator testing.
//
// Synopsis:
//
//	pldmfwpkg -F firmware.fwpkg -N unpack -O out
//	pldmfwpkg -F out/unpack/header.json -N repack -O out
//	pldmfwpkg -F firmware.fwpkg -D -O out
//	pldmfwpkg -F firmware.fwpkg -E UUID -O out
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/microsoft/pldm-fw-pkgr/pkg/log"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/faultinject"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pipeline"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

// options mirrors spec §6's CLI surface.
type options struct {
	File      string `short:"F" long:"file" description:"input .fwpkg (unpack/error) or header.json (repack)"`
	SpecVer   string `short:"S" long:"spec" default:"1.0.0" description:"schema version: one of 1.0.0, 1.1.0, 1.2.0, 1.3.0"`
	Mode      string `short:"N" long:"mode" description:"unpack or repack"`
	ErrorKind string `short:"E" long:"error" description:"fault-injection mode: descriptor, UUID, image, signkey, largefile"`
	DumpOnly  bool   `short:"D" long:"dump" description:"decode the header only, skip image extraction"`
	OutDir    string `short:"O" long:"output" default:"." description:"output directory"`
	SchemaDir string `long:"schema-dir" default:"spec" description:"directory holding pldm_spec_<version>.json documents"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	if err := run(&opts); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	if opts.File == "" {
		return fmt.Errorf("-F is required")
	}

	root, err := schema.Load(filepath.Join(opts.SchemaDir, fmt.Sprintf("pldm_spec_%s.json", opts.SpecVer)))
	if err != nil {
		return err
	}

	switch {
	case opts.DumpOnly:
		return runDumpHeader(opts, root)
	case opts.ErrorKind != "":
		return runErrorInject(opts, root)
	case opts.Mode == "unpack":
		return runUnpack(opts, root)
	case opts.Mode == "repack":
		return runRepack(opts, root)
	default:
		return fmt.Errorf("one of -N unpack, -N repack, -D, or -E <kind> is required")
	}
}

func runUnpack(opts *options, root *schema.Node) error {
	raw, err := os.ReadFile(opts.File)
	if err != nil {
		return err
	}
	res, err := pipeline.Unpack(raw, root)
	if err != nil {
		return err
	}
	if err := pipeline.PrepareOutputDir(opts.OutDir); err != nil {
		return err
	}
	if err := pipeline.WriteUnpack(opts.OutDir, res); err != nil {
		return err
	}
	fmt.Print(pipeline.SummarizeUnpack(res))
	if !res.Success() {
		log.Warnf("checksum mismatch detected; package may be corrupt")
	}
	return nil
}

func runRepack(opts *options, root *schema.Node) error {
	data, err := os.ReadFile(opts.File)
	if err != nil {
		return err
	}
	document, err := doc.Parse(data)
	if err != nil {
		return err
	}
	unpackDir := filepath.Dir(opts.File)
	images, remaining, err := pipeline.LoadImagesFromDisk(unpackDir, document)
	if err != nil {
		return err
	}
	res, err := pipeline.Repack(document, root, images, remaining)
	if err != nil {
		return err
	}
	if err := pipeline.PrepareOutputDir(opts.OutDir); err != nil {
		return err
	}
	return pipeline.WriteRepack(opts.OutDir, res)
}

func runDumpHeader(opts *options, root *schema.Node) error {
	raw, err := os.ReadFile(opts.File)
	if err != nil {
		return err
	}
	res, err := pipeline.DumpHeader(raw, root)
	if err != nil {
		return err
	}
	if err := pipeline.PrepareOutputDir(opts.OutDir); err != nil {
		return err
	}
	return pipeline.WriteHeader(opts.OutDir, res)
}

func runErrorInject(opts *options, root *schema.Node) error {
	raw, err := os.ReadFile(opts.File)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	res, err := pipeline.ErrorInject(raw, root, faultinject.Mode(opts.ErrorKind), rng)
	if err != nil {
		return err
	}
	if err := pipeline.PrepareOutputDir(opts.OutDir); err != nil {
		return err
	}
	return pipeline.WriteRepack(opts.OutDir, res)
}
