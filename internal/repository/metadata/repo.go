// Package metadata persists tenants, per-tenant provider credentials, and the
// profile history in the key-value store. Vectors never pass through here;
// only the metadata rows describing them do.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agentcv/agentcv/internal/db"
	"github.com/agentcv/agentcv/internal/domain"
)

// store is the consumer interface for metadata rows (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements the metadata persistence used by the profile store and chat
// usecases.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a metadata repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Tenant returns a tenant by ID.
func (r *Repo) Tenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	fields, err := r.store.HGetAll(ctx, r.tenantKey(tenantID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("get tenant %s: %w", tenantID, err)
	}
	if len(fields) == 0 {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return parseTenant(tenantID, fields), nil
}

// TenantByHandle resolves a public handle to a tenant through the handle
// index key. The handle is display metadata; the returned tenant ID is what
// every index operation scopes on.
func (r *Repo) TenantByHandle(ctx context.Context, handle string) (domain.Tenant, error) {
	raw, err := r.store.Get(ctx, r.handleKey(handle))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("resolve handle %s: %w", handle, err)
	}
	return r.Tenant(ctx, string(raw))
}

// SaveTenant writes the tenant row and its handle index entry.
func (r *Repo) SaveTenant(ctx context.Context, t domain.Tenant) error {
	if err := r.store.HSet(ctx, r.tenantKey(t.ID), buildTenantFields(t)); err != nil {
		return fmt.Errorf("save tenant %s: %w", t.ID, err)
	}
	if t.Handle != "" {
		if err := r.store.Set(ctx, r.handleKey(t.Handle), []byte(t.ID)); err != nil {
			return fmt.Errorf("index handle %s: %w", t.Handle, err)
		}
	}
	return nil
}

// Credential returns the tenant's provider credential. A missing row or an
// empty API key both map to domain.ErrCredentialMissing; there is no
// server-wide fallback key.
func (r *Repo) Credential(ctx context.Context, tenantID string) (domain.Credential, error) {
	fields, err := r.store.HGetAll(ctx, r.credKey(tenantID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Credential{}, domain.ErrCredentialMissing
		}
		return domain.Credential{}, fmt.Errorf("get credential for tenant %s: %w", tenantID, err)
	}

	cred := parseCredential(fields)
	if cred.IsZero() {
		return domain.Credential{}, domain.ErrCredentialMissing
	}
	return cred, nil
}

// SetCredential stores the tenant's provider credential, replacing any
// previous one.
func (r *Repo) SetCredential(ctx context.Context, tenantID string, cred domain.Credential) error {
	if cred.IsZero() {
		return fmt.Errorf("empty credential: %w", domain.ErrValidation)
	}
	if err := r.store.HSet(ctx, r.credKey(tenantID), buildCredentialFields(cred)); err != nil {
		return fmt.Errorf("set credential for tenant %s: %w", tenantID, err)
	}
	return nil
}

// DeleteCredential removes the tenant's provider credential. Deleting a
// credential that does not exist is a success.
func (r *Repo) DeleteCredential(ctx context.Context, tenantID string) error {
	if err := r.store.Del(ctx, r.credKey(tenantID)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("delete credential for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Insert writes one profile metadata row.
func (r *Repo) Insert(ctx context.Context, rec domain.ProfileRecord) error {
	key := r.profileKey(rec.TenantID, rec.ID)
	if err := r.store.HSet(ctx, key, buildProfileFields(rec)); err != nil {
		return fmt.Errorf("insert profile %s: %w", rec.ID, err)
	}
	return nil
}

// Deactivate clears the active flag on every profile row of the tenant in a
// single pipelined write. A tenant with no rows is a no-op.
func (r *Repo) Deactivate(ctx context.Context, tenantID string) error {
	keys, err := r.store.Scan(ctx, r.profilePattern(tenantID))
	if err != nil {
		return fmt.Errorf("scan profiles for tenant %s: %w", tenantID, err)
	}
	if len(keys) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(keys))
	for i, key := range keys {
		items[i] = db.HashSetItem{Key: key, Fields: map[string]string{fieldActive: "false"}}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("deactivate profiles for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Active returns the tenant's single active profile row.
func (r *Repo) Active(ctx context.Context, tenantID string) (domain.ProfileRecord, error) {
	records, err := r.records(ctx, tenantID)
	if err != nil {
		return domain.ProfileRecord{}, err
	}
	for _, rec := range records {
		if rec.Active {
			return rec, nil
		}
	}
	return domain.ProfileRecord{}, domain.ErrNoProfile
}

// ActiveByHandle resolves a handle and returns the tenant together with its
// active profile. For handle access the profile must also be published;
// an unpublished active profile behaves as absent.
func (r *Repo) ActiveByHandle(ctx context.Context, handle string) (domain.Tenant, domain.ProfileRecord, error) {
	tenant, err := r.TenantByHandle(ctx, handle)
	if err != nil {
		return domain.Tenant{}, domain.ProfileRecord{}, err
	}
	rec, err := r.Active(ctx, tenant.ID)
	if err != nil {
		return domain.Tenant{}, domain.ProfileRecord{}, err
	}
	if !rec.Published {
		return domain.Tenant{}, domain.ProfileRecord{}, domain.ErrNoProfile
	}
	return tenant, rec, nil
}

// History returns every profile row of the tenant, newest first.
func (r *Repo) History(ctx context.Context, tenantID string) ([]domain.ProfileRecord, error) {
	records, err := r.records(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (r *Repo) records(ctx context.Context, tenantID string) ([]domain.ProfileRecord, error) {
	keys, err := r.store.Scan(ctx, r.profilePattern(tenantID))
	if err != nil {
		return nil, fmt.Errorf("scan profiles for tenant %s: %w", tenantID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load profiles for tenant %s: %w", tenantID, err)
	}

	records := make([]domain.ProfileRecord, 0, len(rows))
	for i, fields := range rows {
		if len(fields) == 0 {
			continue
		}
		records = append(records, parseProfileFields(r.profileID(keys[i], tenantID), tenantID, fields))
	}
	return records, nil
}

func (r *Repo) tenantKey(tenantID string) string {
	return r.keyPrefix + "tenant:" + tenantID
}

func (r *Repo) handleKey(handle string) string {
	return r.keyPrefix + "handle:" + handle
}

func (r *Repo) credKey(tenantID string) string {
	return r.keyPrefix + "cred:" + tenantID
}

func (r *Repo) profileKey(tenantID, profileID string) string {
	return r.keyPrefix + "profile:" + tenantID + ":" + profileID
}

func (r *Repo) profilePattern(tenantID string) string {
	return r.keyPrefix + "profile:" + tenantID + ":*"
}

func (r *Repo) profileID(key, tenantID string) string {
	prefix := r.keyPrefix + "profile:" + tenantID + ":"
	if len(key) > len(prefix) {
		return key[len(prefix):]
	}
	return key
}
