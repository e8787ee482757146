package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDatabaseSQL(t *testing.T) {
	stmt, err := createDatabaseSQL("listing")
	require.NoError(t, err)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS `listing`", stmt)

	for _, bad := range []string{"", "a`b", "x; DROP TABLE y"} {
		_, err := createDatabaseSQL(bad)
		assert.Error(t, err, bad)
	}
}
