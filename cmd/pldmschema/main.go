// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// pldmschema validates a spec/pldm_spec_<version>.json document against the
// schema model's attribute rules and pretty-prints its field tree. It never
// touches package bytes; it is a standalone companion to pldmfwpkg for
// authoring and debugging schema documents.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/microsoft/pldm-fw-pkgr/pkg/log"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

func main() {
	var path string
	pflag.StringVarP(&path, "schema", "s", "", "path to a pldm_spec_<version>.json document")
	pflag.Parse()

	if path == "" {
		log.Fatalf("-s/--schema is required")
	}

	root, err := schema.Load(path)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("%s: valid\n", path)
	schema.Dump(root, os.Stdout)
}
