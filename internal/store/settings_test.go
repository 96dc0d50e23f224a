package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_PutAndGet(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetSetting("smtp_host")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutSetting(&Setting{Key: "smtp_host", Value: "smtp.acme.dev", ValueType: "string", Category: "mail"}))

	value, ok, err := s.GetSetting("smtp_host")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "smtp.acme.dev", value)

	// Replace keeps a single row per key.
	require.NoError(t, s.PutSetting(&Setting{Key: "smtp_host", Value: "smtp2.acme.dev", ValueType: "string"}))
	value, _, err = s.GetSetting("smtp_host")
	require.NoError(t, err)
	assert.Equal(t, "smtp2.acme.dev", value)

	has, err := s.HasSetting("smtp_host")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRecipients_SaveIgnoresDuplicates(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveRecipient(&Recipient{Name: "Alice", Email: "alice@acme.dev", IsActive: true}))
	require.NoError(t, s.SaveRecipient(&Recipient{Name: "Alice Again", Email: "alice@acme.dev", IsActive: true}))
	require.NoError(t, s.SaveRecipient(&Recipient{Name: "Bob", Email: "bob@acme.dev", IsActive: true}))
	require.NoError(t, s.SaveRecipient(&Recipient{Name: "Gone", Email: "gone@acme.dev", IsActive: false}))

	recipients, err := s.ListActiveRecipients()
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.Equal(t, "alice@acme.dev", recipients[0].Email)
	assert.Equal(t, "all", recipients[0].ReportKinds)
	assert.Equal(t, "bob@acme.dev", recipients[1].Email)
}

func TestRepositories_SaveAndListActive(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveRepository(&Repository{Name: "api", FullName: "acme/api", URL: "https://github.com/acme/api", IsActive: true}))
	require.NoError(t, s.SaveRepository(&Repository{Name: "api", FullName: "acme/api", IsActive: true})) // duplicate name ignored
	require.NoError(t, s.SaveRepository(&Repository{Name: "old", FullName: "acme/old", IsActive: false}))

	repos, err := s.ListActiveRepositories()
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "acme/api", repos[0].FullName)
	assert.Equal(t, "https://github.com/acme/api", repos[0].URL)
}
