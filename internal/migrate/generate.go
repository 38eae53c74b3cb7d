package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/unisergius/meetballs/internal/schema"
)

const (
	metaDir      = "meta"
	snapshotFile = "snapshot.json"
	// goose's timestamp version layout.
	versionLayout = "20060102150405"
)

// Generated describes a migration file written by Generate.
type Generated struct {
	Path    string
	Version int64
	Up      schema.Plan
	Down    schema.Plan
}

// SnapshotPath is where the schema of the latest generated migration is kept.
func (m *Migrator) SnapshotPath() string {
	return filepath.Join(m.dir, metaDir, snapshotFile)
}

// LoadSnapshot reads the schema of the latest generated migration. A missing
// file yields an empty snapshot.
func (m *Migrator) LoadSnapshot() (schema.Snapshot, error) {
	data, err := os.ReadFile(m.SnapshotPath())
	if errors.Is(err, fs.ErrNotExist) {
		return schema.Empty(), nil
	}
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return schema.Unmarshal(data)
}

func (m *Migrator) saveSnapshot(s schema.Snapshot) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.SnapshotPath()), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(m.SnapshotPath(), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Generate compares the declared schema with the snapshot of the previous
// migration and writes a new timestamped goose migration for the
// difference. The down section reverses the change.
func (m *Migrator) Generate(declared schema.Snapshot, name string) (*Generated, error) {
	if err := declared.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	prev, err := m.LoadSnapshot()
	if err != nil {
		return nil, err
	}

	up := schema.Diff(prev, declared)
	if up.Empty() {
		return nil, ErrNoChanges
	}
	down := schema.Diff(declared, prev)

	version, err := m.nextVersion()
	if err != nil {
		return nil, err
	}
	name = sanitizeName(name)
	if name == "" {
		name = defaultName(up)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations dir: %w", err)
	}
	path := filepath.Join(m.dir, fmt.Sprintf("%d_%s.sql", version, name))
	if err := os.WriteFile(path, []byte(render(up, down)), 0o644); err != nil {
		return nil, fmt.Errorf("write migration: %w", err)
	}
	if err := m.saveSnapshot(declared); err != nil {
		// Leave no migration behind that the snapshot does not describe.
		_ = os.Remove(path)
		return nil, err
	}

	for _, w := range up.Warnings {
		m.log.Warn("%s: %s", filepath.Base(path), w)
	}
	m.log.Info("generated %s (%d statements)", path, len(up.Statements))
	return &Generated{Path: path, Version: version, Up: up, Down: down}, nil
}

// nextVersion returns the current timestamp version, bumped past any
// existing migration so versions always increase.
func (m *Migrator) nextVersion() (int64, error) {
	v, err := strconv.ParseInt(m.now().UTC().Format(versionLayout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("format version: %w", err)
	}
	entries, err := os.ReadDir(m.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("read migrations dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		existing, err := goose.NumericComponent(e.Name())
		if err != nil {
			continue
		}
		if existing >= v {
			v = existing + 1
		}
	}
	return v, nil
}

func render(up, down schema.Plan) string {
	var sb strings.Builder
	if up.Rebuild || down.Rebuild {
		sb.WriteString("-- +goose NO TRANSACTION\n")
	}
	sb.WriteString("-- +goose Up\n")
	writeSection(&sb, up)
	sb.WriteString("\n-- +goose Down\n")
	writeSection(&sb, down)
	return sb.String()
}

func writeSection(sb *strings.Builder, p schema.Plan) {
	for _, w := range p.Warnings {
		fmt.Fprintf(sb, "-- WARNING: %s\n", w)
	}
	for _, stmt := range p.Statements {
		sb.WriteString(stmt)
		sb.WriteString("\n")
	}
}

func sanitizeName(name string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

func defaultName(p schema.Plan) string {
	switch {
	case len(p.Created) > 0 && len(p.Altered) == 0 && len(p.Dropped) == 0:
		return sanitizeName("create_" + strings.Join(p.Created, "_"))
	case len(p.Dropped) > 0 && len(p.Created) == 0 && len(p.Altered) == 0:
		return sanitizeName("drop_" + strings.Join(p.Dropped, "_"))
	case len(p.Altered) > 0 && len(p.Created) == 0 && len(p.Dropped) == 0:
		return sanitizeName("alter_" + strings.Join(p.Altered, "_"))
	}
	return "schema_change"
}
