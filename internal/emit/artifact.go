package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/program"
)

// Current schema version. Bump when the artifact layout changes so
// stale objects are rejected instead of misread.
const artifactSchemaVersion uint16 = 2

// ArtifactMethod is one emitted method in the object artifact. The
// body is the opaque encoding of the lowered tree; consumers that only
// need linkage read the names and skip the payload.
type ArtifactMethod struct {
	Symbol       uint32
	FullName     string
	Body         []byte
	StateMachine string
	HoistedSlots []string
}

// Artifact is the on-disk object produced for one module.
type Artifact struct {
	Schema     uint16
	Module     string
	EntryPoint string
	Methods    []ArtifactMethod
	// Types lists the synthesized types registered during assembly, by
	// full name, so linkers can resolve state machines and closure
	// environments without decoding bodies.
	Types   []string
	Helpers []HelperField
}

// BuildArtifact snapshots a frozen module builder into its artifact
// form. The builder must be frozen first; a live builder could still
// grow while we stream it.
func BuildArtifact(m *ModuleBuilder) (*Artifact, error) {
	if !m.Frozen() {
		return nil, fmt.Errorf("emit: cannot build artifact for live module %s", m.name)
	}
	a := &Artifact{
		Schema:  artifactSchemaVersion,
		Module:  m.name,
		Helpers: m.privateImpl.Fields(),
	}
	if entry := m.EntryPoint(); entry.IsValid() {
		a.EntryPoint = m.table.FullName(entry)
	}
	for _, t := range m.SynthesizedTypes() {
		a.Types = append(a.Types, m.table.FullName(t))
	}
	for _, id := range m.Methods() {
		body, debug, _ := m.MethodBody(id)
		data, err := program.EncodeBody(body)
		if err != nil {
			return nil, fmt.Errorf("emit: %s: %w", m.table.FullName(id), err)
		}
		am := ArtifactMethod{
			Symbol:       uint32(id),
			FullName:     m.table.FullName(id),
			Body:         data,
			HoistedSlots: debug.HoistedSlots,
		}
		if debug.StateMachineType.IsValid() {
			am.StateMachine = m.table.FullName(debug.StateMachineType)
		}
		a.Methods = append(a.Methods, am)
	}
	return a, nil
}

// SaveArtifact writes the artifact through a temp file in the target
// directory so a crash never leaves a torn object.
func SaveArtifact(a *Artifact, path string) error {
	data, err := msgpack.Marshal(a)
	if err != nil {
		return fmt.Errorf("emit: encode artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadArtifact reads an artifact written by SaveArtifact, rejecting
// objects from other schema versions.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("emit: decode %s: %w", path, err)
	}
	if a.Schema != artifactSchemaVersion {
		return nil, fmt.Errorf("emit: %s: schema %d, want %d", path, a.Schema, artifactSchemaVersion)
	}
	return &a, nil
}
