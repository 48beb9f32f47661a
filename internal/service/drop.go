package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"filedrop/internal/logging"
	"filedrop/internal/model"
	"filedrop/internal/repository"
	"filedrop/internal/storage"
)

var (
	ErrFileRequired    = errors.New("file is required")
	ErrInvalidFilename = errors.New("invalid file name")
	// ErrNothingToDownload wraps storage.ErrEmpty.
	ErrNothingToDownload = fmt.Errorf("nothing to download: %w", storage.ErrEmpty)
)

// sniffLen is the header size h2non/filetype needs to match every known type.
const sniffLen = 262

const defaultContentType = "application/octet-stream"

var tracer = otel.Tracer("filedrop/internal/service")

// UploadRequest carries one uploaded file part.
type UploadRequest struct {
	Reader   io.Reader
	Filename string
	// Size is the part size when the transport knows it, otherwise -1.
	Size int64
	// FileID is the caller's correlation token. It is logged and journaled only.
	FileID string
}

// DropService defines the drop use cases: keep the uploaded file, hand back the newest one.
type DropService interface {
	// Upload stores the file under its base name, replacing a previous file of that name.
	Upload(ctx context.Context, req UploadRequest) (*model.StoredFile, error)

	// Download opens the most recently stored file. The caller closes the reader.
	// It returns ErrNothingToDownload when nothing has been uploaded.
	Download(ctx context.Context) (io.ReadCloser, *model.StoredFile, error)
}

type dropService struct {
	store   storage.Storage
	journal repository.UploadJournal
	log     logrus.FieldLogger
	metrics *Metrics
}

// NewDropService constructs a DropService. journal and metrics may be nil.
func NewDropService(store storage.Storage, journal repository.UploadJournal, log logrus.FieldLogger, metrics *Metrics) DropService {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &dropService{store: store, journal: journal, log: log, metrics: metrics}
}

// SanitizeFilename reduces a client supplied filename to its last path
// element. Both slash styles count as separators.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimSpace(path.Base(strings.TrimSpace(name)))
	if name == "/" {
		return ""
	}
	return name
}

func (s *dropService) Upload(ctx context.Context, req UploadRequest) (*model.StoredFile, error) {
	if req.Reader == nil {
		return nil, ErrFileRequired
	}
	name := SanitizeFilename(req.Filename)
	if err := storage.ValidateName(name); err != nil {
		return nil, ErrInvalidFilename
	}

	ctx, span := tracer.Start(ctx, "DropService.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("filedrop.filename", name),
		attribute.Int64("filedrop.size", req.Size),
	)

	log := logging.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"filename": name,
		"file_id":  req.FileID,
	})

	br := bufio.NewReaderSize(req.Reader, sniffLen)
	contentType := detectContentType(br)

	info, err := s.store.Put(ctx, name, br, storage.PutObjectOptions{
		Size:        req.Size,
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store file")
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			s.metrics.upload(resultTooLarge, 0)
			log.WithField("size", req.Size).Warn("upload rejected: size limit")
			return nil, err
		case errors.Is(err, storage.ErrInvalidName):
			s.metrics.upload(resultRejected, 0)
			return nil, ErrInvalidFilename
		}
		s.metrics.upload(resultError, 0)
		log.WithError(err).Error("upload failed")
		return nil, fmt.Errorf("store file: %w", err)
	}

	s.metrics.upload(resultOK, info.Size)
	log.WithFields(logrus.Fields{
		"size":         info.Size,
		"content_type": contentType,
	}).Info("upload_stored")

	if s.journal != nil {
		entry := &model.JournalEntry{
			ID:        uuid.NewString(),
			Filename:  name,
			Size:      info.Size,
			FileID:    req.FileID,
			RequestID: logging.RequestID(ctx),
		}
		if err := s.journal.Record(ctx, entry); err != nil {
			log.WithError(err).Warn("upload journal write failed")
		}
	}

	return &model.StoredFile{
		Name:         name,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

func (s *dropService) Download(ctx context.Context) (io.ReadCloser, *model.StoredFile, error) {
	ctx, span := tracer.Start(ctx, "DropService.Download")
	defer span.End()

	log := logging.FromContext(ctx, s.log)

	rc, info, err := s.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrEmpty) {
			s.metrics.download(resultEmpty)
			log.Info("download requested with empty drop")
			return nil, nil, ErrNothingToDownload
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "open latest file")
		s.metrics.download(resultError)
		log.WithError(err).Error("download failed")
		return nil, nil, fmt.Errorf("open latest file: %w", err)
	}

	span.SetAttributes(
		attribute.String("filedrop.filename", info.Name),
		attribute.Int64("filedrop.size", info.Size),
	)
	s.metrics.download(resultOK)
	log.WithFields(logrus.Fields{
		"filename": info.Name,
		"size":     info.Size,
	}).Info("download_started")

	return rc, &model.StoredFile{
		Name:         info.Name,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// detectContentType matches the leading bytes of br without consuming them.
func detectContentType(br *bufio.Reader) string {
	head, _ := br.Peek(sniffLen)
	if len(head) == 0 {
		return defaultContentType
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return defaultContentType
	}
	return kind.MIME.Value
}
