//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditline-platform/auditline/internal/auditevent"
)

func seedDomain(t *testing.T, env *TestEnv, domain string, users []string, perUser int) []auditevent.AuditEvent {
	t.Helper()
	ctx := context.Background()

	var all []auditevent.AuditEvent
	for i := 0; i < perUser; i++ {
		for _, login := range users {
			e := auditevent.AuditEvent{
				DomainID:  domain,
				UserLogin: login,
				Occurred:  time.Now().UTC(),
				UserIP:    "10.0.0.1",
				Success:   true,
				Type:      "login",
			}
			require.NoError(t, env.Repo.Save(ctx, &e))
			all = append(all, e)
		}
	}
	return all
}

func TestDomainEventsLifecycle(t *testing.T) {
	env := SetupTestEnv(t)

	env.Directory.AddUser("lc-admin", "lc-admin@example.com", "lc-domain")
	env.Directory.AddUser("lc-user", "lc-user@example.com", "lc-domain")
	env.Directory.AddDomain("lc-domain", "lc-admin")

	adminToken := Token(t, env, "lc-admin")
	userToken := Token(t, env, "lc-user")

	t.Run("empty domain lists no events", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/domains/lc-domain/auditEvents", adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := ParsePage(t, resp)
		assert.NotNil(t, page.Events)
		assert.Empty(t, page.Events)
		assert.Empty(t, page.Paging.Offset)
	})

	all := seedDomain(t, env, "lc-domain", []string{"lc-admin@example.com", "lc-user@example.com"}, 4)

	t.Run("admin lists whole domain", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/domains/lc-domain/auditEvents", adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := ParsePage(t, resp)
		require.Len(t, page.Events, len(all))

		for i := 1; i < len(page.Events); i++ {
			assert.True(t, page.Events[i-1].ID.String() < page.Events[i].ID.String(),
				"events must come back in ID order")
		}
	})

	t.Run("plain user cannot list the domain", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/domains/lc-domain/auditEvents", userToken)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("no token is a 400", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/domains/lc-domain/auditEvents", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("user lists own events", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/users/lc-user/auditEvents", userToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := ParsePage(t, resp)
		require.Len(t, page.Events, 4)
		for _, e := range page.Events {
			assert.Equal(t, "lc-user@example.com", e.UserLogin)
		}
	})

	t.Run("admin lists another user's events", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/users/lc-user/auditEvents", adminToken)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := ParsePage(t, resp)
		assert.Len(t, page.Events, 4)
	})

	t.Run("user cannot read another user", func(t *testing.T) {
		resp := DoRequest(t, env, "GET", "/users/lc-admin/auditEvents", userToken)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin deletes the domain stream", func(t *testing.T) {
		resp := DoRequest(t, env, "DELETE", "/domains/lc-domain/auditEvents", adminToken)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		listResp := DoRequest(t, env, "GET", "/domains/lc-domain/auditEvents", adminToken)
		page := ParsePage(t, listResp)
		assert.Empty(t, page.Events)
	})
}

func TestDomainEventsPaging(t *testing.T) {
	env := SetupTestEnv(t)

	env.Directory.AddUser("pg-admin", "pg-admin@example.com", "pg-domain")
	env.Directory.AddDomain("pg-domain", "pg-admin")
	token := Token(t, env, "pg-admin")

	all := seedDomain(t, env, "pg-domain", []string{"pg-admin@example.com"}, 10)

	t.Run("pages chain through the whole stream", func(t *testing.T) {
		var got []auditevent.AuditEvent

		path := "/domains/pg-domain/auditEvents?limit=3"
		for path != "" {
			resp := DoRequest(t, env, "GET", path, token)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			page := ParsePage(t, resp)
			got = append(got, page.Events...)
			path = page.Paging.Next
		}

		require.Len(t, got, len(all))
		for i := range all {
			assert.Equal(t, all[i].ID, got[i].ID, "event %d out of order", i)
		}
	})

	t.Run("offset resumes after the given event", func(t *testing.T) {
		offset := all[4].ID.String()
		resp := DoRequest(t, env, "GET",
			"/domains/pg-domain/auditEvents?offset="+offset+"&limit=100", token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := ParsePage(t, resp)
		require.Len(t, page.Events, 5)
		assert.Equal(t, all[5].ID, page.Events[0].ID)
	})

	t.Run("time window selects a sub-range", func(t *testing.T) {
		from := auditevent.TimeFromID(all[3].ID)
		to := auditevent.TimeFromID(all[7].ID).Add(time.Millisecond)

		path := fmt.Sprintf("/domains/pg-domain/auditEvents?from=%s&to=%s",
			url.QueryEscape(from.Format(time.RFC3339)), url.QueryEscape(to.Format(time.RFC3339)))
		resp := DoRequest(t, env, "GET", path, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		page := ParsePage(t, resp)
		for _, e := range page.Events {
			recorded := auditevent.TimeFromID(e.ID)
			assert.False(t, recorded.Before(from.Truncate(time.Second)))
			assert.False(t, recorded.After(to))
		}
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := map[string]string{
			"?offset=junk": "invalid_offset",
			"?limit=0":     "not_positive_limit",
			"?type=1bad":   "not_matching_eventtype",
			"?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z": "invalid_time_interval",
		}
		for query, code := range cases {
			resp := DoRequest(t, env, "GET", "/domains/pg-domain/auditEvents"+query, token)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, query)

			body := ParseResponse(t, resp)
			assert.Equal(t, code, body["code"], query)
		}
	})
}

func TestRetentionMaintenance(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	env.Directory.AddUser("rt-admin", "rt-admin@example.com", "rt-domain")
	env.Directory.AddDomain("rt-domain", "rt-admin")

	// One fresh event and one written with an ID far in the past.
	fresh := auditevent.AuditEvent{
		DomainID: "rt-domain", UserLogin: "rt-admin@example.com",
		Occurred: time.Now().UTC(), UserIP: "10.0.0.1", Success: true, Type: "login",
	}
	require.NoError(t, env.Repo.Save(ctx, &fresh))

	old := auditevent.AuditEvent{
		ID:       auditevent.CursorFromTime(time.Now().AddDate(0, 0, -200)),
		DomainID: "rt-domain", UserLogin: "rt-admin@example.com",
		Occurred: time.Now().AddDate(0, 0, -200), UserIP: "10.0.0.1", Success: true, Type: "login",
	}
	require.NoError(t, env.Repo.Save(ctx, &old))

	tables, err := env.Repo.DomainTables(ctx)
	require.NoError(t, err)
	require.Contains(t, tables, testTablePrefix+"rt-domain")

	table := testTablePrefix + "rt-domain"
	require.NoError(t, env.Repo.EnsureUserLoginIndex(ctx, table))
	require.NoError(t, env.Repo.EnsureUserLoginIndex(ctx, table), "index creation must be idempotent")

	purged, err := env.Repo.PurgeExpired(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	events, err := env.Repo.Find(ctx, "rt-domain", auditevent.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fresh.ID, events[0].ID)
}

func TestInvalidRecordsSink(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	err := env.Repo.SaveInvalid(ctx, "missing required fields: UserLogin", map[string]any{
		"$weird": "value",
		"a.b":    map[string]any{"c.d": 1},
	})
	require.NoError(t, err)

	var reason string
	var payload map[string]any
	row := env.Pool.QueryRow(ctx,
		`SELECT reason, payload FROM audit_invalid_records ORDER BY received DESC LIMIT 1`)
	require.NoError(t, row.Scan(&reason, &payload))

	assert.Equal(t, "missing required fields: UserLogin", reason)
	assert.Contains(t, payload, "__dollar__weird")
	nested := payload["a__dot__b"].(map[string]any)
	assert.Contains(t, nested, "c__dot__d")
}
