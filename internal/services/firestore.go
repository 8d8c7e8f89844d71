package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	_ RemoteStore = (*FirestoreService)(nil)
	_ Transactor  = (*FirestoreService)(nil)
)

// FirestoreService maps store paths onto Firestore. Paths with an even number of
// segments are documents, odd ones are collections.
type FirestoreService struct {
	client *firestore.Client
}

func NewFirestoreService(ctx context.Context, projectID string, opts ...option.ClientOption) (*FirestoreService, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreService{
		client: client,
	}, nil
}

// Client exposes the underlying client for repositories sharing the connection.
func (fs *FirestoreService) Client() *firestore.Client {
	return fs.client
}

func (fs *FirestoreService) Close() error {
	return fs.client.Close()
}

func (fs *FirestoreService) doc(path string) (*firestore.DocumentRef, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segments)%2 != 0 {
		return nil, fmt.Errorf("%w: %s is a collection", ErrInvalidPath, path)
	}
	return fs.client.Doc(strings.Join(segments, "/")), nil
}

func (fs *FirestoreService) collection(path string) (*firestore.CollectionRef, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segments)%2 != 1 {
		return nil, fmt.Errorf("%w: %s is a document", ErrInvalidPath, path)
	}
	return fs.client.Collection(strings.Join(segments, "/")), nil
}

func isCollection(path string) bool {
	segments, err := splitPath(path)
	return err == nil && len(segments)%2 == 1
}

func (fs *FirestoreService) Write(ctx context.Context, path string, fields map[string]any) error {
	ref, err := fs.doc(path)
	if err != nil {
		return WrapError("write", path, err)
	}
	if _, err := ref.Set(ctx, fields); err != nil {
		return WrapError("write", path, mapStatus(err))
	}
	return nil
}

func (fs *FirestoreService) Push(ctx context.Context, path string, fields map[string]any) (string, error) {
	coll, err := fs.collection(path)
	if err != nil {
		return "", WrapError("push", path, err)
	}

	id := ulid.Make().String()
	if _, err := coll.Doc(id).Set(ctx, fields); err != nil {
		return "", WrapError("push", path, mapStatus(err))
	}
	return id, nil
}

func (fs *FirestoreService) Update(ctx context.Context, path string, fields map[string]any) error {
	ref, err := fs.doc(path)
	if err != nil {
		return WrapError("update", path, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updates := make([]firestore.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}

	if _, err := ref.Update(ctx, updates); err != nil {
		return WrapError("update", path, mapStatus(err))
	}
	return nil
}

// Remove deletes a document, or every document of a collection.
// Removing something that does not exist succeeds.
func (fs *FirestoreService) Remove(ctx context.Context, path string) error {
	if !isCollection(path) {
		ref, err := fs.doc(path)
		if err != nil {
			return WrapError("remove", path, err)
		}
		if _, err := ref.Delete(ctx); err != nil {
			return WrapError("remove", path, mapStatus(err))
		}
		return nil
	}

	coll, err := fs.collection(path)
	if err != nil {
		return WrapError("remove", path, err)
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return WrapError("remove", path, fmt.Errorf("failed to iterate documents for deletion: %w", mapStatus(err)))
		}

		if _, err := doc.Ref.Delete(ctx); err != nil {
			return WrapError("remove", doc.Ref.Path, mapStatus(err))
		}
	}

	return nil
}

func (fs *FirestoreService) Read(ctx context.Context, path string) (map[string]any, error) {
	if isCollection(path) {
		coll, err := fs.collection(path)
		if err != nil {
			return nil, WrapError("read", path, err)
		}
		iter := coll.Documents(ctx)
		defer iter.Stop()
		value, err := collectionValue(iter)
		if err != nil {
			return nil, WrapError("read", path, err)
		}
		return value, nil
	}

	ref, err := fs.doc(path)
	if err != nil {
		return nil, WrapError("read", path, err)
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError("read", path, mapStatus(err))
	}
	return snap.Data(), nil
}

func (fs *FirestoreService) Subscribe(ctx context.Context, path string, fn func(map[string]any)) (Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}

	if isCollection(path) {
		coll, err := fs.collection(path)
		if err != nil {
			cancel()
			return nil, WrapError("subscribe", path, err)
		}
		it := coll.Snapshots(ctx)
		go sub.run(ctx, path, func() (map[string]any, error) {
			snap, err := it.Next()
			if err != nil {
				return nil, err
			}
			return collectionValue(snap.Documents)
		}, it.Stop, fn)
		return sub.stop, nil
	}

	ref, err := fs.doc(path)
	if err != nil {
		cancel()
		return nil, WrapError("subscribe", path, err)
	}
	it := ref.Snapshots(ctx)
	go sub.run(ctx, path, func() (map[string]any, error) {
		snap, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !snap.Exists() {
			return nil, nil
		}
		return snap.Data(), nil
	}, it.Stop, fn)
	return sub.stop, nil
}

// Negate flips a boolean field inside a transaction. A missing field counts as false.
func (fs *FirestoreService) Negate(ctx context.Context, path, field string) (bool, error) {
	ref, err := fs.doc(path)
	if err != nil {
		return false, WrapError("negate", path, err)
	}

	var next bool
	err = fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, ok := snap.Data()[field]
		if !ok || current == nil {
			current = false
		}
		b, ok := current.(bool)
		if !ok {
			return ErrNotBool
		}
		next = !b
		return tx.Update(ref, []firestore.Update{{Path: field, Value: next}})
	})
	if err != nil {
		return false, WrapError("negate", path, mapStatus(err))
	}
	return next, nil
}

func collectionValue(iter *firestore.DocumentIterator) (map[string]any, error) {
	value := make(map[string]any)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", mapStatus(err))
		}
		value[doc.Ref.ID] = doc.Data()
	}
	if len(value) == 0 {
		return nil, nil
	}
	return value, nil
}

func mapStatus(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// subscription drives one snapshot iterator. After stop no further values are delivered.
type subscription struct {
	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

func (s *subscription) run(ctx context.Context, path string, next func() (map[string]any, error), release func(), fn func(map[string]any)) {
	defer release()
	for {
		value, err := next()
		if err != nil {
			if err != iterator.Done && ctx.Err() == nil {
				log.Error().Err(err).Str("path", path).Msg("Snapshot listener stopped")
			}
			return
		}
		if !s.active() {
			return
		}
		fn(value)
	}
}

func (s *subscription) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}
