package journal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-cane/internal/config"
	"github.com/oshokin/smart-cane/internal/domain/guidance"
)

// Repository defines persistence operations for alert records.
type Repository interface {
	Save(ctx context.Context, record *guidance.AlertRecord) error
	Last(ctx context.Context) (*guidance.AlertRecord, error)
}

// FileRepository appends alert records to a JSON Lines file.
type FileRepository struct {
	// path is the filesystem location of the journal.
	path string
	// mu serializes appends and reads.
	mu sync.Mutex
}

// ErrNotFound is returned when the journal holds no records yet.
var ErrNotFound = errors.New("no alert records")

// maxRecordSize bounds one journal line.
const maxRecordSize = 64 * 1024

// NewFileRepository creates a repository that appends to the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Save appends the record to the journal.
func (r *FileRepository) Save(_ context.Context, record *guidance.AlertRecord) error {
	message, err := toProto(record)
	if err != nil {
		return fmt.Errorf("convert record: %w", err)
	}

	// Single line output, one record per line.
	data, err := protojson.MarshalOptions{Multiline: false}.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err = file.Write(append(data, '\n')); err != nil {
		_ = file.Close()

		return fmt.Errorf("write journal: %w", err)
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}

	return nil
}

// Last returns the most recent record.
func (r *FileRepository) Last(_ context.Context) (*guidance.AlertRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var (
		last    []byte
		scanner = bufio.NewScanner(file)
	)

	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxRecordSize)

	for scanner.Scan() {
		if line := bytes.TrimSpace(scanner.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	if last == nil {
		return nil, ErrNotFound
	}

	var message structpb.Struct
	if err = protojson.Unmarshal(last, &message); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	return fromProto(&message)
}

// toProto converts the domain record into a protobuf Struct.
func toProto(record *guidance.AlertRecord) (*structpb.Struct, error) {
	recipients := make([]any, 0, len(record.Alert.Recipients))
	for _, recipient := range record.Alert.Recipients {
		recipients = append(recipients, recipient)
	}

	fields := map[string]any{
		"id":           record.Alert.ID,
		"triggered_at": record.Alert.TriggeredAt.UTC().Format(time.RFC3339Nano),
		"completed_at": record.CompletedAt.UTC().Format(time.RFC3339Nano),
		"recipients":   recipients,
		"delivered":    record.Delivered,
		"location": map[string]any{
			"known":     record.Alert.Coordinate.Known,
			"latitude":  record.Alert.Coordinate.Latitude,
			"longitude": record.Alert.Coordinate.Longitude,
		},
	}

	if record.Error != "" {
		fields["error"] = record.Error
	}

	return structpb.NewStruct(fields)
}

// fromProto converts a protobuf Struct back into the domain record.
func fromProto(message *structpb.Struct) (*guidance.AlertRecord, error) {
	fields := message.GetFields()

	triggeredAt, err := parseTime(fields["triggered_at"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("triggered_at: %w", err)
	}

	completedAt, err := parseTime(fields["completed_at"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("completed_at: %w", err)
	}

	var recipients []string
	for _, value := range fields["recipients"].GetListValue().GetValues() {
		recipients = append(recipients, value.GetStringValue())
	}

	location := fields["location"].GetStructValue().GetFields()

	coordinate := guidance.Unknown()
	if location["known"].GetBoolValue() {
		coordinate = guidance.NewCoordinate(location["latitude"].GetNumberValue(), location["longitude"].GetNumberValue())
	}

	return &guidance.AlertRecord{
		CompletedAt: completedAt,
		Error:       fields["error"].GetStringValue(),
		Alert: guidance.Alert{
			TriggeredAt: triggeredAt,
			ID:          fields["id"].GetStringValue(),
			Recipients:  recipients,
			Coordinate:  coordinate,
		},
		Delivered: fields["delivered"].GetBoolValue(),
	}, nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, value)
}
