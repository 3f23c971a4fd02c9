package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validSources = `[
  {
    "id": "acme",
    "name": "Acme Careers",
    "base_url": "https://careers.acme.test/jobs",
    "company": "Acme",
    "adapter": "selector",
    "rules": {"item": ".job-listing", "title": ".job-title", "location": ".job-location", "link": "a"},
    "enabled": true,
    "politeness_seconds": 2
  },
  {
    "id": "globex-gh",
    "name": "Globex (Greenhouse)",
    "base_url": "https://boards.greenhouse.io/globex",
    "adapter": "greenhouse",
    "enabled": true
  },
  {
    "id": "initech-wd",
    "name": "Initech (Workday)",
    "base_url": "https://initech.wd1.myworkdayjobs.com/External",
    "adapter": "workday",
    "enabled": false
  }
]`

func TestRegistry_LoadValid(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(writeSources(t, validSources)))

	enabled := r.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "acme", enabled[0].ID)
	assert.Equal(t, "globex-gh", enabled[1].ID)

	def, ok := r.Get("acme")
	require.True(t, ok)
	assert.Equal(t, KindSelector, def.Adapter)
	require.NotNil(t, def.Rules)
	assert.Equal(t, ".job-listing", def.Rules.Item)
}

func TestRegistry_DisabledSourceExcluded(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(writeSources(t, validSources)))

	_, ok := r.Get("initech-wd")
	assert.True(t, ok, "disabled sources are still resolvable by id")
	for _, def := range r.Enabled() {
		assert.NotEqual(t, "initech-wd", def.ID)
	}
}

func TestRegistry_SelectSubset(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(writeSources(t, validSources)))

	defs := r.Select([]string{"globex-gh", "initech-wd", "missing"})
	require.Len(t, defs, 1)
	assert.Equal(t, "globex-gh", defs[0].ID)

	all := r.Select(nil)
	assert.Len(t, all, 2)
}

func TestRegistry_RejectsUnknownAdapterKind(t *testing.T) {
	r := NewRegistry()
	err := r.Load(writeSources(t, `[{"id":"x","name":"X","base_url":"https://x.test","adapter":"smartrecruiters","enabled":true}]`))
	require.Error(t, err)

	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestRegistry_RejectsSelectorWithoutRules(t *testing.T) {
	r := NewRegistry()
	err := r.Load(writeSources(t, `[{"id":"x","name":"X","base_url":"https://x.test","adapter":"selector","enabled":true}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires rules")
}

func TestRegistry_LoadFailureKeepsPreviousSet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Load(writeSources(t, validSources)))

	err := r.Load(writeSources(t, `not json`))
	require.Error(t, err)
	assert.Len(t, r.Enabled(), 2, "failed load must not clobber the installed set")
}

func TestRegistry_Reload(t *testing.T) {
	path := writeSources(t, validSources)
	r := NewRegistry()
	require.NoError(t, r.Load(path))

	updated := `[{"id":"acme","name":"Acme Careers","base_url":"https://careers.acme.test/jobs","adapter":"lever","enabled":true}]`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, r.Reload())

	def, ok := r.Get("acme")
	require.True(t, ok)
	assert.Equal(t, KindLever, def.Adapter)
}

func TestParseAdapterKind(t *testing.T) {
	for _, valid := range []string{"selector", "workday", "greenhouse", "lever"} {
		kind, err := ParseAdapterKind(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(kind))
	}
	_, err := ParseAdapterKind("linkedin")
	assert.Error(t, err)
}
