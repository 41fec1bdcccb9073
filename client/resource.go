package client

import (
	"context"
	"net/http"
	"net/url"
)

// Resource exposes the REST routes of one entity type. T is the entity
// returned by the backend and P the payload accepted by create and update.
type Resource[T, P any] struct {
	client *Client
	name   string
}

// Name returns the collection name, which doubles as its list cache key.
func (r *Resource[T, P]) Name() string {
	return r.name
}

// ItemKey returns the cache key of a single entity.
func (r *Resource[T, P]) ItemKey(id string) string {
	return r.name + "/" + id
}

// List fetches the whole collection.
func (r *Resource[T, P]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := r.client.do(ctx, r.name, http.MethodGet, r.collectionPath(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Get fetches one entity. A missing entity yields an error for which
// IsNotFound reports true.
func (r *Resource[T, P]) Get(ctx context.Context, id string) (T, error) {
	var out T
	if err := r.client.do(ctx, r.name, http.MethodGet, r.itemPath(id), nil, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Create posts a new entity; the backend assigns its identifier.
func (r *Resource[T, P]) Create(ctx context.Context, payload P) (T, error) {
	var out T
	if err := r.client.do(ctx, r.name, http.MethodPost, r.collectionPath(), payload, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Update replaces an entity. Whether absent fields are cleared is up to the
// backend.
func (r *Resource[T, P]) Update(ctx context.Context, id string, payload P) (T, error) {
	var out T
	if err := r.client.do(ctx, r.name, http.MethodPut, r.itemPath(id), payload, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Delete removes an entity. Any response body is discarded.
func (r *Resource[T, P]) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, r.name, http.MethodDelete, r.itemPath(id), nil, nil)
}

func (r *Resource[T, P]) collectionPath() string {
	return "/" + r.name
}

func (r *Resource[T, P]) itemPath(id string) string {
	return "/" + r.name + "/" + url.PathEscape(id)
}
