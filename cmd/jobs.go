package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bibliotheque/apiserver/config"
	"github.com/bibliotheque/apiserver/internal/db"
	"github.com/bibliotheque/apiserver/internal/mq"
	"github.com/bibliotheque/apiserver/internal/store"
)

// openLoans connects to postgres for the batch commands. The in-memory
// store is per process, so it has nothing for a separate job to read.
func openLoans(ctx context.Context, cfg config.Config) (*store.LoanRepository, io.Closer, error) {
	if cfg.Store == config.StoreBackendMemory {
		return nil, nil, errors.New("this command needs STORE_BACKEND=postgres")
	}
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewLoanRepository(conn), conn, nil
}

func openQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	queue, err := mq.NewFromConfig(ctx, cfg.MQ)
	if errors.Is(err, mq.ErrDisabled) {
		return nil, errors.New("this command needs MQ_BACKEND (rabbitmq, pubsub or nats)")
	}
	return queue, err
}
