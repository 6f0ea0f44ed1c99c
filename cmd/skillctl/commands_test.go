package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askfin/backend/internal/pkg/skills"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSkill(t *testing.T, root, dir, doc string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	file := filepath.Join(root, dir, skills.SkillFileName)
	require.NoError(t, os.WriteFile(file, []byte(doc), 0644))
	return file
}

func TestValidateCmd(t *testing.T) {
	root := t.TempDir()
	good := writeSkill(t, root, "good", "---\nname: good_skill\nversion: 2.0.0\n---\nbody")
	bad := writeSkill(t, root, "bad", "no frontmatter")

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "OK   "+good+" (good_skill 2.0.0)")

	out, err = run(t, "validate", good, bad, filepath.Join(root, "missing.md"))
	assert.ErrorIs(t, err, errInvalidSkills)
	assert.Contains(t, out, "FAIL "+bad)
	assert.Contains(t, out, "missing YAML frontmatter")
	assert.Contains(t, out, "2 of 3")

	_, err = run(t, "validate")
	assert.Error(t, err)
}

func TestListCmd(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "a", "---\nname: alpha\ntriggers: [one, two]\n---\nbody")
	writeSkill(t, root, "b", "---\nname: Bad\n---\nbody")

	out, err := run(t, "list", "--dir", root)
	assert.ErrorIs(t, err, errInvalidSkills)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "one, two")
	assert.Contains(t, out, "invalid name format")

	out, err = run(t, "list", "--dir", filepath.Join(root, "nope"))
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
}

func TestMatchCmd(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "gst", "---\nname: gst\ndescription: GST rules\ntriggers: [gst]\n---\nGST BODY")
	writeSkill(t, root, "bas", "---\nname: bas_review\ntriggers: [bas review]\n---\nBAS BODY")

	out, err := run(t, "match", "--dir", root, "-m", "gst")
	require.NoError(t, err)
	assert.Contains(t, out, "* gst")
	assert.Contains(t, out, "1.00")
	assert.NotContains(t, out, "bas_review")

	out, err = run(t, "match", "--dir", root, "-m", "gst", "--max", "0", "--prompt")
	require.NoError(t, err)
	assert.NotContains(t, out, "GST BODY")

	out, err = run(t, "match", "--dir", root, "-m", "gst and bas review", "--prompt")
	require.NoError(t, err)
	assert.Contains(t, out, "# Active Skills")
	assert.Contains(t, out, "## Skill: gst")
	assert.Contains(t, out, "BAS BODY")

	out, err = run(t, "match", "--dir", root, "-m", "payroll")
	require.NoError(t, err)
	assert.Contains(t, out, "no skills matched")

	_, err = run(t, "match", "--dir", root)
	assert.Error(t, err)
}
