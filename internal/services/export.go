package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bibliotheque/apiserver/internal/lending"
	"github.com/bibliotheque/apiserver/internal/storage"
	"github.com/bibliotheque/apiserver/types"
)

// ObjectStore is the subset of storage.Storage used by exports.
type ObjectStore interface {
	Put(ctx context.Context, obj storage.Object) error
	Bucket() string
}

var exportHeader = []string{
	"id", "statut",
	"utilisateurId", "nom", "prenom", "email",
	"livreId", "titre", "auteur", "isbn",
	"dateEmprunt", "dateRetourPrevu", "dateRetourEffectif",
	"joursRestants", "joursRetard", "dureeJours",
}

// ExportResult describes an uploaded export.
type ExportResult struct {
	Bucket string
	Key    string
	Loans  int
}

// ExportService writes the loan history as CSV into object storage.
type ExportService struct {
	loans  LoanLister
	store  ObjectStore
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

func NewExportService(loans LoanLister, objects ObjectStore, prefix string, opts ...Option) *ExportService {
	s := newSettings(opts)
	return &ExportService{loans: loans, store: objects, prefix: prefix, now: s.now, logger: s.logger}
}

// ExportLoans uploads every loan, classified at the current time, newest first.
func (s *ExportService) ExportLoans(ctx context.Context) (ExportResult, error) {
	now := s.now()
	loans, err := s.loans.List(ctx, types.LoanQuery{})
	if err != nil {
		return ExportResult{}, fmt.Errorf("list loans: %w", err)
	}

	var buf bytes.Buffer
	if err := writeLoansCSV(&buf, loans, now); err != nil {
		return ExportResult{}, fmt.Errorf("encode loans: %w", err)
	}

	filename := fmt.Sprintf("loans-%s-%s.csv", now.UTC().Format("20060102"), uuid.NewString())
	key := path.Join(s.prefix, filename)
	err = s.store.Put(ctx, storage.Object{
		Key:         key,
		Body:        bytes.NewReader(buf.Bytes()),
		Size:        int64(buf.Len()),
		ContentType: "text/csv",
		Filename:    filename,
		Metadata: map[string]string{
			"dataset":      "loans",
			"rows":         strconv.Itoa(len(loans)),
			"generated-at": now.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.Info("loans exported", slog.String("bucket", s.store.Bucket()), slog.String("key", key), slog.Int("loans", len(loans)))
	return ExportResult{Bucket: s.store.Bucket(), Key: key, Loans: len(loans)}, nil
}

func writeLoansCSV(w io.Writer, loans []types.LoanDetails, now time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, loan := range loans {
		loan = lending.Describe(loan, now)
		returnedAt := ""
		if loan.ReturnedAt != nil {
			returnedAt = loan.ReturnedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.Itoa(loan.ID),
			string(loan.Status),
			strconv.Itoa(loan.UserID),
			loan.User.LastName,
			loan.User.FirstName,
			loan.User.Email,
			strconv.Itoa(loan.BookID),
			loan.Book.Title,
			loan.Book.Author,
			loan.Book.ISBN,
			loan.LoanedAt.UTC().Format(time.RFC3339),
			loan.DueAt.UTC().Format(time.RFC3339),
			returnedAt,
			optionalInt(loan.DaysRemaining),
			optionalInt(loan.DaysOverdue),
			optionalInt(loan.DurationDays),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
