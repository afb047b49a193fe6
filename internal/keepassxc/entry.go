package keepassxc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/impl/karp/client"
	"github.com/impl/karp/internal/cryptoprim"
	"github.com/impl/karp/internal/errs"
	wire "github.com/impl/karp/internal/wire/keepassxc"
)

type getLoginsPayload struct {
	Action string    `json:"action"`
	URL    string    `json:"url"`
	Keys   []wire.Key `json:"keys"`
}

type getLoginsEntry struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Name     string `json:"name"`
	UUID     string `json:"uuid"`
	Group    string `json:"group"`
}

type getLoginsReply struct {
	Count   int              `json:"count"`
	Entries []getLoginsEntry `json:"entries"`
}

func (e getLoginsEntry) toEntry() client.Entry {
	return client.Entry{
		ID:     e.UUID,
		Parent: e.Group,
		Title:  e.Name,
		Fields: []client.FormField{
			{Type: client.FormFieldUsername, DisplayName: "Username", Value: e.Login},
			{Type: client.FormFieldPassword, DisplayName: "Password", Value: e.Password},
		},
	}
}

// GetEntry encodes the group path and title as a keepassxc://by-path/...
// URL and issues get-logins, expecting exactly the matching entry back.
func (m *Manager) GetEntry(ctx context.Context, groupPath []string, title string) (*client.Entry, error) {
	segments := append(append([]string{}, groupPath...), title)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	byPathURL := "keepassxc://by-path/" + strings.Join(segments, "/")

	entries, err := m.getLogins(ctx, byPathURL)
	if err != nil {
		var serverErr *errs.ServerError
		if errors.As(err, &serverErr) && wire.ErrorCode(serverErr.Code).IsNoLoginsFound() {
			parent := strings.Join(groupPath, "/")
			return nil, &errs.EntryNotFound{Parent: parent, Name: title}
		}
		return nil, err
	}
	if len(entries) == 0 {
		parent := strings.Join(groupPath, "/")
		return nil, &errs.EntryNotFound{Parent: parent, Name: title}
	}
	entry := entries[0].toEntry()
	return &entry, nil
}

// FindEntries issues get-logins with query as the url filter; a
// NoLoginsFound server error is treated as an empty result rather than an
// error.
func (m *Manager) FindEntries(ctx context.Context, query string) ([]client.Entry, error) {
	entries, err := m.getLogins(ctx, query)
	if err != nil {
		var serverErr *errs.ServerError
		if errors.As(err, &serverErr) && wire.ErrorCode(serverErr.Code).IsNoLoginsFound() {
			return nil, nil
		}
		return nil, err
	}
	out := make([]client.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toEntry())
	}
	return out, nil
}

func (m *Manager) getLogins(ctx context.Context, target string) ([]getLoginsEntry, error) {
	existing, ok, err := m.sstore.Get()
	if err != nil {
		return nil, err
	}
	var keys []wire.Key
	if ok {
		for _, assoc := range existing.Keys {
			idKeyPair := cryptoprim.BoxKeyPairFromSecret(assoc.IDKey)
			keys = append(keys, wire.Key{ID: assoc.ID, Key: base64Key(idKeyPair.Public)})
		}
	}

	raw, err := m.call(ctx, "get-logins", getLoginsPayload{Action: "get-logins", URL: target, Keys: keys})
	if err != nil {
		return nil, err
	}

	var reply getLoginsReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode get-logins reply: %w", err)
	}
	return reply.Entries, nil
}
