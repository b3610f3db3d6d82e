// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCatalogCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append([]string{"validate-catalog"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateCatalog_EmbeddedCatalog(t *testing.T) {
	isolateConfig(t)

	out, err := runValidateCatalogCmd(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog valid:")
	assert.Contains(t, out, "subject.role (string)")
}

func TestValidateCatalog_FileArgument(t *testing.T) {
	isolateConfig(t)
	path := writeTestConfig(t, testCatalogYAML)

	out, err := runValidateCatalogCmd(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog valid: 1 attributes, catalog version 1.0.0")
	assert.Contains(t, out, "subject.team (string)")
}

func TestValidateCatalog_ConfiguredPath(t *testing.T) {
	isolateConfig(t)
	path := writeTestConfig(t, testCatalogYAML)
	configFile = writeTestConfig(t, "catalog:\n  path: "+path+"\n")

	out, err := runValidateCatalogCmd(t)
	require.NoError(t, err)
	assert.Contains(t, out, "subject.team (string)")
}

func TestValidateCatalog_BadValuesText(t *testing.T) {
	isolateConfig(t)
	path := writeTestConfig(t, `catalogVersion: "1.0.0"
attributes:
  - name: subject.level
    displayName: Level
    categories: [subject]
    dataType: number
    values: "1, two, 3"
`)

	_, err := runValidateCatalogCmd(t, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject.level")
}

func TestValidateCatalog_UnsupportedVersion(t *testing.T) {
	isolateConfig(t)
	path := writeTestConfig(t, `catalogVersion: "9.0.0"
attributes:
  - name: subject.team
    displayName: Team
    categories: [subject]
    dataType: string
    values: "red"
`)

	_, err := runValidateCatalogCmd(t, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supported range")
}

func TestValidateCatalog_MissingFile(t *testing.T) {
	isolateConfig(t)

	_, err := runValidateCatalogCmd(t, "/does/not/exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read catalog file")
}

func TestValidateCatalog_TooManyArgs(t *testing.T) {
	isolateConfig(t)

	_, err := runValidateCatalogCmd(t, "a.yaml", "b.yaml")
	require.Error(t, err)
}
