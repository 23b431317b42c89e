// Package blob deletes stored image blobs referenced by entity records.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Object names one stored blob.
type Object struct {
	Bucket string
	Name   string
}

func (o Object) String() string { return "gs://" + o.Bucket + "/" + o.Name }

// ParseURI accepts gs://bucket/name, https://storage.googleapis.com/bucket/name
// and Firebase download URLs (.../v0/b/{bucket}/o/{escaped name}).
func ParseURI(uri string) (Object, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Object{}, fmt.Errorf("parse blob uri %q: %w", uri, err)
	}

	var obj Object
	switch {
	case u.Scheme == "gs":
		obj = Object{Bucket: u.Host, Name: strings.TrimPrefix(u.Path, "/")}
	case (u.Scheme == "https" || u.Scheme == "http") && strings.Contains(u.EscapedPath(), "/v0/b/"):
		// Firebase download URLs escape the object name, slashes included.
		rest := u.EscapedPath()[strings.Index(u.EscapedPath(), "/v0/b/")+len("/v0/b/"):]
		bucket, escaped, ok := strings.Cut(rest, "/o/")
		if !ok {
			return Object{}, fmt.Errorf("parse blob uri %q: missing object segment", uri)
		}
		name, err := url.PathUnescape(escaped)
		if err != nil {
			return Object{}, fmt.Errorf("parse blob uri %q: %w", uri, err)
		}
		obj = Object{Bucket: bucket, Name: name}
	case (u.Scheme == "https" || u.Scheme == "http") && u.Host == "storage.googleapis.com":
		bucket, name, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		obj = Object{Bucket: bucket, Name: name}
	default:
		return Object{}, fmt.Errorf("parse blob uri %q: unsupported scheme or host", uri)
	}

	if obj.Bucket == "" || obj.Name == "" {
		return Object{}, fmt.Errorf("parse blob uri %q: empty bucket or object", uri)
	}
	return obj, nil
}

// Remover is the subset of a storage client the Deleter needs.
type Remover interface {
	Remove(ctx context.Context, obj Object) error
}

// Deleter deletes blobs by URI. Missing objects count as deleted.
type Deleter struct {
	r Remover
}

// NewDeleter wraps r.
func NewDeleter(r Remover) *Deleter {
	return &Deleter{r: r}
}

// DeleteBlob removes the object uri points at.
func (d *Deleter) DeleteBlob(ctx context.Context, uri string) error {
	tracer := otel.Tracer("pxflux/blob")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Deleter.DeleteBlob")
	defer span.End()
	span.SetAttributes(attribute.String("uri", uri))

	obj, err := ParseURI(uri)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := d.r.Remove(ctx, obj); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			slog.Debug("blob already gone", "object", obj.String())
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete %s: %w", obj, err)
	}
	return nil
}

// GCS removes objects from Cloud Storage.
type GCS struct {
	client *storage.Client
}

// NewGCS wraps an open storage client.
func NewGCS(client *storage.Client) *GCS {
	return &GCS{client: client}
}

// Remove deletes obj.
func (g *GCS) Remove(ctx context.Context, obj Object) error {
	return g.client.Bucket(obj.Bucket).Object(obj.Name).Delete(ctx)
}
