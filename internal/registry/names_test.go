package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePackageName(t *testing.T) {
	p, err := ParsePackageName("daily")
	require.NoError(t, err)
	assert.Equal(t, PackageName{Namespace: "climate", Name: "daily"}, p)

	p, err = ParsePackageName("noaa/ghcn-daily_2024")
	require.NoError(t, err)
	assert.Equal(t, "noaa/ghcn-daily_2024", p.String())

	for _, bad := range []string{"", "a/b/c", "/name", "ns/", "bad name"} {
		_, err := ParsePackageName(bad)
		assert.ErrorIs(t, err, ErrInvalidPackage, bad)
	}
}

func TestParseRegistryURL(t *testing.T) {
	loc, err := ParseRegistryURL("s3://climate-data-bucket/registry/v1/")
	require.NoError(t, err)
	assert.True(t, loc.Remote())
	assert.Equal(t, "climate-data-bucket", loc.Bucket)
	assert.Equal(t, "registry/v1", loc.Prefix)
	assert.Equal(t, "s3://climate-data-bucket/registry/v1", loc.String())

	loc, err = ParseRegistryURL("./data/registry")
	require.NoError(t, err)
	assert.False(t, loc.Remote())
	assert.Equal(t, "./data/registry", loc.Path)

	_, err = ParseRegistryURL("s3://x")
	assert.Error(t, err)
	_, err = ParseRegistryURL("")
	assert.Error(t, err)
}

func TestValidateBucketName(t *testing.T) {
	valid := []string{"abc", "climate-data.2024", "my.bucket.name"}
	for _, name := range valid {
		assert.NoError(t, ValidateBucketName(name), name)
	}

	invalid := []string{
		"ab",
		"a23456789012345678901234567890123456789012345678901234567890abcd",
		"-bucket",
		"bucket-",
		"my..bucket",
		"my-.bucket",
		"my.-bucket",
		"my_bucket",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateBucketName(name), name)
	}
}
