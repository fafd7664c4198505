package auditevent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDomain(t *testing.T) {
	assert.True(t, ValidDomain("d1"))
	assert.True(t, ValidDomain("customer_prod"))

	assert.False(t, ValidDomain(""))
	assert.False(t, ValidDomain("evil$domain"))
}

func TestSanitizeFieldNames(t *testing.T) {
	in := map[string]any{
		"$set":     "x",
		"a.b":      "y",
		"plain":    "z",
		"$a.b$c.d": 1,
	}

	out := sanitizeFieldNames(in)

	assert.Equal(t, map[string]any{
		"__dollar__set": "x",
		"a__dot__b":     "y",
		"plain":         "z",
		"__dollar__a__dot__b__dollar__c__dot__d": 1,
	}, out)
}

func TestSanitizeFieldNames_Nested(t *testing.T) {
	in := map[string]any{
		"outer": map[string]any{
			"$inner": map[string]any{"x.y": true},
		},
	}

	out := sanitizeFieldNames(in)

	outer := out["outer"].(map[string]any)
	inner := outer["__dollar__inner"].(map[string]any)
	assert.Equal(t, true, inner["x__dot__y"])
}

func TestTableFor(t *testing.T) {
	r := &postgresRepository{tablePrefix: "auditlog_"}

	table, err := r.tableFor("d1")
	require.NoError(t, err)
	assert.Equal(t, "auditlog_d1", table)

	_, err = r.tableFor("")
	assert.Error(t, err)
	_, err = r.tableFor("evil$domain")
	assert.Error(t, err)
}

func TestTableFor_InvalidRecordsTableReserved(t *testing.T) {
	// A prefix and domain combination spelling out the side table's name must
	// not route domain events onto it.
	r := &postgresRepository{tablePrefix: "audit_"}

	_, err := r.tableFor("invalid_records")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")

	table, err := r.tableFor("other")
	require.NoError(t, err)
	assert.Equal(t, "audit_other", table)
}

func TestSave_ReservedDomainRejected(t *testing.T) {
	r := &postgresRepository{tablePrefix: "audit_"}

	err := r.Save(context.Background(), &AuditEvent{
		DomainID: "invalid_records", UserLogin: "a@x", UserIP: "10.0.0.1", Type: "login",
	})
	require.Error(t, err)

	_, err = r.Find(context.Background(), "invalid_records", Query{Limit: 10})
	require.Error(t, err)
}
