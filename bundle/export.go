package bundle

import (
	"context"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/aaronp/go-kerits/cesr"
	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/store"
)

// Exporter assembles bundles from a store.
type Exporter struct {
	store *store.Store
	log   logger.Logger
	clock func() time.Time
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithClock overrides the created timestamp source.
func WithClock(clock func() time.Time) ExporterOption {
	return func(e *Exporter) { e.clock = clock }
}

func NewExporter(st *store.Store, log logger.Logger, opts ...ExporterOption) *Exporter {
	e := &Exporter{store: st, log: log, clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) newBundle(t string, scope *Scope, source string) *Bundle {
	return &Bundle{
		Type:    t,
		Version: Version,
		Events:  []string{},
		Metadata: Metadata{
			Source:  source,
			Created: e.clock().UTC().Format(time.RFC3339),
			Scope:   scope,
		},
	}
}

// ExportKel bundles an identifier's key event log.
func (e *Exporter) ExportKel(ctx context.Context, aid string) (*Bundle, error) {
	b := e.newBundle(TypeKel, &Scope{Aid: aid}, aid)
	kel, err := e.store.ListKel(ctx, aid)
	if err != nil {
		return nil, err
	}
	for _, stored := range kel {
		b.addFrame(stored.Raw)
	}
	return b, nil
}

// ExportRegistry bundles everything a fresh store needs to replay a
// registry to the same indexed state: the issuer's KEL (the anchor lives
// there), the TEL, and every credential the TEL references.
func (e *Exporter) ExportRegistry(ctx context.Context, registryId string) (*Bundle, error) {
	b := e.newBundle(TypeMixed, &Scope{RegistryId: registryId}, "")
	telEvents, err := e.store.ListTel(ctx, registryId)
	if err != nil {
		return nil, err
	}

	// the issuer's KEL first so the anchor validates on arrival
	if len(telEvents) > 0 {
		vcp, err := telInception(telEvents)
		if err != nil {
			return nil, err
		}
		b.Metadata.Source = vcp.II
		kel, err := e.store.ListKel(ctx, vcp.II)
		if err != nil {
			return nil, err
		}
		for _, stored := range kel {
			b.addFrame(stored.Raw)
		}
	}

	// credentials before the tel events that reference them
	seen := map[string]bool{}
	for _, stored := range telEvents {
		if stored.Meta.Type != event.TypeIss || seen[stored.Meta.Identifier] {
			continue
		}
		seen[stored.Meta.Identifier] = true
		frame, _, err := e.store.GetEvent(ctx, stored.Meta.Identifier)
		if err != nil {
			return nil, err
		}
		b.addFrame(frame)
	}
	for _, stored := range telEvents {
		b.addFrame(stored.Raw)
	}
	e.log.Debugf("bundle.export: registry=%s events=%d", registryId, len(b.Events))
	return b, nil
}

// ExportRegistryStream renders a registry export as raw concatenated
// CESR frames, the envelope-free wire form.
func (e *Exporter) ExportRegistryStream(ctx context.Context, registryId string) ([]byte, error) {
	b, err := e.ExportRegistry(ctx, registryId)
	if err != nil {
		return nil, err
	}
	frames, err := b.Frames()
	if err != nil {
		return nil, err
	}
	var stream []byte
	for _, frame := range frames {
		stream = append(stream, frame...)
	}
	return stream, nil
}

// ExportAcdc bundles a single credential with its issuance event.
func (e *Exporter) ExportAcdc(ctx context.Context, credentialId string) (*Bundle, error) {
	b := e.newBundle(TypeAcdc, &Scope{CredentialId: credentialId}, "")
	frame, meta, err := e.store.GetEvent(ctx, credentialId)
	if err != nil {
		return nil, err
	}
	b.addFrame(frame)
	telEvents, err := e.store.ListTel(ctx, meta.Registry)
	if err != nil {
		return nil, err
	}
	for _, stored := range telEvents {
		if stored.Meta.Identifier == credentialId && stored.Meta.Type == event.TypeIss {
			b.addFrame(stored.Raw)
		}
	}
	return b, nil
}

func telInception(telEvents []store.StoredEvent) (*event.Vcp, error) {
	_, body, _, err := cesr.Decode(telEvents[0].Raw)
	if err != nil {
		return nil, err
	}
	return event.ParseVcp(body)
}
