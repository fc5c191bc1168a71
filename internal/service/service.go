// Package service runs obfuscation jobs: it fetches an object from storage,
// masks the requested fields with the core pipeline, optionally writes the
// result back, and records an audit event.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/JonMunkholm/obfuscator/internal/core"
	"github.com/JonMunkholm/obfuscator/internal/logging"
	"github.com/JonMunkholm/obfuscator/internal/storage"
)

// ErrInvalidRequest is returned for malformed job requests.
var ErrInvalidRequest = errors.New("invalid request")

// ErrObjectTooLarge is returned when the source exceeds MaxObjectSize.
var ErrObjectTooLarge = storage.ErrTooLarge

// DefaultMaxObjectSize caps fetched objects at 100MB.
const DefaultMaxObjectSize int64 = 100 << 20

// DefaultTimeout bounds a single job.
const DefaultTimeout = 5 * time.Minute

// Request describes one obfuscation job.
type Request struct {
	// TargetPath is the storage location of the source object.
	TargetPath string `json:"file_to_obfuscate"`

	// Fields are the column names to mask.
	Fields []string `json:"pii_fields"`

	// Format optionally restricts detection to one format.
	Format string `json:"format,omitempty"`

	// Destination optionally receives the masked object.
	Destination string `json:"destination,omitempty"`
}

// UnmarshalJSON accepts the legacy names s3_path and obfuscate_fields.
func (r *Request) UnmarshalJSON(b []byte) error {
	var aux struct {
		TargetPath      string   `json:"file_to_obfuscate"`
		S3Path          string   `json:"s3_path"`
		Fields          []string `json:"pii_fields"`
		ObfuscateFields []string `json:"obfuscate_fields"`
		Format          string   `json:"format"`
		Destination     string   `json:"destination"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	r.TargetPath = aux.TargetPath
	if r.TargetPath == "" {
		r.TargetPath = aux.S3Path
	}
	r.Fields = aux.Fields
	if r.Fields == nil {
		r.Fields = aux.ObfuscateFields
	}
	r.Format = aux.Format
	r.Destination = aux.Destination
	return nil
}

// job is a validated Request.
type job struct {
	source      storage.Location
	destination *storage.Location
	fields      core.FieldSet
	hint        core.Format
}

func (r Request) parse() (job, error) {
	var j job

	path := strings.TrimSpace(r.TargetPath)
	if path == "" {
		return j, fmt.Errorf("%w: file_to_obfuscate is required", ErrInvalidRequest)
	}
	src, err := storage.ParsePathOrLocation(path)
	if err != nil {
		return j, err
	}
	j.source = src

	if d := strings.TrimSpace(r.Destination); d != "" {
		dst, err := storage.ParsePathOrLocation(d)
		if err != nil {
			return j, err
		}
		j.destination = &dst
	}

	hint, err := core.ParseFormat(r.Format)
	if err != nil {
		return j, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	j.hint = hint
	j.fields = core.NewFieldSet(r.Fields...)
	return j, nil
}

// Response is the outcome of a successful job.
type Response struct {
	JobID       string        `json:"job_id"`
	Payload     []byte        `json:"-"`
	Format      core.Format   `json:"format"`
	Rows        int           `json:"rows"`
	Columns     []string      `json:"columns"`
	Masked      []string      `json:"masked"`
	Destination string        `json:"destination,omitempty"`
	InputHash   string        `json:"input_hash"`
	OutputHash  string        `json:"output_hash"`
	Duration    time.Duration `json:"duration_ns"`
}

// Options configures a Service. Zero values take the package defaults.
type Options struct {
	MaxObjectSize int64
	MaxConcurrent int
	MaxWaitTime   time.Duration
	Timeout       time.Duration
	EmptyFields   core.EmptyFieldsPolicy

	// Auditor receives one event per job. Nil means LogAuditor.
	Auditor Auditor
}

// Service executes obfuscation jobs against a storage backend.
// It is safe for concurrent use.
type Service struct {
	store       storage.Store
	limiter     *JobLimiter
	auditor     Auditor
	maxSize     int64
	timeout     time.Duration
	emptyFields core.EmptyFieldsPolicy

	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// New creates a Service reading from and writing to store.
func New(store storage.Store, opts Options) *Service {
	if opts.MaxObjectSize <= 0 {
		opts.MaxObjectSize = DefaultMaxObjectSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Auditor == nil {
		opts.Auditor = LogAuditor{}
	}
	return &Service{
		store:       store,
		limiter:     NewJobLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		auditor:     opts.Auditor,
		maxSize:     opts.MaxObjectSize,
		timeout:     opts.Timeout,
		emptyFields: opts.EmptyFields,
	}
}

// Auditor returns the auditor jobs are recorded with.
func (s *Service) Auditor() Auditor {
	return s.auditor
}

// Obfuscate runs one job: fetch, mask, optionally store, audit.
func (s *Service) Obfuscate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	id := uuid.New()
	ctx = logging.ContextWithJobID(ctx, id.String())
	log := logging.WithFields(ctx, "source", req.TargetPath)

	ip, ua := ClientFromContext(ctx)
	event := Event{
		ID:          id,
		Source:      req.TargetPath,
		Destination: req.Destination,
		Fields:      core.NewFieldSet(req.Fields...).Names(),
		IPAddress:   ip,
		UserAgent:   ua,
		CreatedAt:   start.UTC(),
	}

	resp, err := s.run(ctx, req, &event)
	event.Duration = time.Since(start)

	if err != nil {
		s.failed.Add(1)
		event.Status = JobFailed
		event.ErrorCode = core.MapError(err).Code
		record(ctx, s.auditor, event)
		log.Warn("obfuscation failed",
			slog.String("code", event.ErrorCode),
			slog.String("error", err.Error()),
			slog.Duration("duration", event.Duration),
		)
		return nil, err
	}

	s.succeeded.Add(1)
	event.Status = JobSucceeded
	record(ctx, s.auditor, event)

	resp.JobID = id.String()
	resp.Duration = event.Duration
	log.Info("obfuscation complete",
		slog.String("format", string(resp.Format)),
		slog.Int("rows", resp.Rows),
		slog.Any("masked", resp.Masked),
		slog.Duration("duration", resp.Duration),
	)
	return resp, nil
}

func (s *Service) run(ctx context.Context, req Request, event *Event) (*Response, error) {
	j, err := req.parse()
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := storage.Fetch(ctx, s.store, j.source, s.maxSize)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", j.source, err)
	}
	event.InputBytes = len(data)
	event.InputHash = fingerprint(data)

	res, err := core.Process(data, j.fields,
		core.WithFormatHint(j.hint),
		core.WithEmptyFieldsPolicy(s.emptyFields),
	)
	if err != nil {
		return nil, err
	}
	event.Format = string(res.Format)
	event.Rows = res.Rows
	event.OutputBytes = len(res.Payload)
	event.OutputHash = fingerprint(res.Payload)

	resp := &Response{
		Payload:    res.Payload,
		Format:     res.Format,
		Rows:       res.Rows,
		Columns:    res.Columns,
		Masked:     res.Masked,
		InputHash:  event.InputHash,
		OutputHash: event.OutputHash,
	}

	if j.destination != nil {
		if err := s.store.Put(ctx, *j.destination, res.Payload, res.Format.ContentType()); err != nil {
			return nil, fmt.Errorf("store %s: %w", j.destination, err)
		}
		resp.Destination = j.destination.String()
	}
	return resp, nil
}

// fingerprint identifies a payload in logs and the audit trail without
// revealing its content.
func fingerprint(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// Status is a snapshot of service activity.
type Status struct {
	Jobs      LimiterStatus `json:"jobs"`
	Succeeded uint64        `json:"succeeded"`
	Failed    uint64        `json:"failed"`
}

// Status returns current job slot usage and completed job counts.
func (s *Service) Status() Status {
	return Status{
		Jobs:      s.limiter.Status(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
}

// WaitForJobs blocks until running jobs finish or ctx is done.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
