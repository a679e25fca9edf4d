package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
)

type TxManager struct {
	client *mongo.Client
}

func NewTxManager(client *mongo.Client) *TxManager {
	return &TxManager{client: client}
}

// InTx runs fn inside a multi-document transaction. The session travels in
// the context handed to fn, so any collection call made with it joins the
// transaction. The driver may retry fn on transient errors.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// MapError translates driver errors into store sentinels.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", apperr.ErrDuplicate, err)
	}
	return err
}
