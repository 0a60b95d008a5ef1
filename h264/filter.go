package h264

import (
	"github.com/rs/zerolog"
)

// Sink is the host collaborator a Filter emits actions to: the streaming
// framework the core treats as an external collaborator rather than a
// dependency of its own.
type Sink interface {
	WriteAction(Action) error
}

// Alignment is the input/output buffer alignment a Filter operates under.
type Alignment int

const (
	AlignmentAU Alignment = iota
	AlignmentNALU
)

// Mode is the input buffer alignment signalled by the host, determined on
// first stream-format signal and fixed for the life of the Filter.
type Mode int

const (
	ModeBytestream Mode = iota
	ModeNALUAligned
	ModeAUAligned
)

// FilterOptions configures a Filter, mirroring the host-supplied
// configuration options of the external interface.
type FilterOptions struct {
	SPS, PPS            [][]byte
	Framerate           Framerate
	OutputAlignment     Alignment
	SkipUntilKeyframe   bool
	RepeatParameterSets bool

	OutputStructure     StreamStructure
	OutputLengthSize    int // default 4
	FollowInputStructure bool // when true, the output uses the input's structure (OutputStructure is ignored) and, once an AVC input is seen, its length size

	GenerateBestEffortTimestamps bool
	TimeUnitPerSec               int64 // default 1e9 (nanoseconds)

	// AddDTSOffset, when non-nil, is an explicit PTS-DTS gap in
	// TimeUnitPerSec units supplied by the host alongside
	// GenerateBestEffortTimestamps, standing in for an SPS-derived reorder
	// depth when one isn't available (generate_best_effort_timestamps's
	// add_dts_offset option).
	AddDTSOffset *int64
}

// DefaultFilterOptions returns the documented defaults: au alignment,
// skip_until_keyframe=true, repeat_parameter_sets=false, length_size=4,
// nanosecond time unit.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		OutputAlignment:      AlignmentAU,
		SkipUntilKeyframe:    true,
		FollowInputStructure: true,
		OutputLengthSize:     4,
		TimeUnitPerSec:       1e9,
	}
}

// NALUMetadata is one entry of an output buffer's h264.nalus metadata.
type NALUMetadata struct {
	Type              Type
	PrefixedOffset     int
	PrefixedLen        int
	UnprefixedOffset   int
	UnprefixedLen      int
	NewAccessUnit      bool
	EndAccessUnit      bool

	// SEI holds the decoded supplemental-enhancement-information payloads
	// when Type is TypeSEI, purely informational (never required for AU
	// assembly correctness).
	SEI []SEIPayload
}

// OutputBuffer is one Filter output: a framed payload plus its metadata,
// corresponding to one AU (AlignmentAU) or one NALU (AlignmentNALU).
type OutputBuffer struct {
	Payload   []byte
	KeyFrame  bool
	NALUs     []NALUMetadata
	Timestamps Timestamps
}

// StreamFormatAction is emitted before any buffer that depends on it, per
// the ordering guarantee in the concurrency model.
type StreamFormatAction struct {
	Alignment Alignment
	Format    Format
	Structure StreamStructure

	// DCR is the marshaled Decoder Configuration Record carrying the current
	// SPS/PPS, populated when Structure is StructureAVC1 or StructureAVC3
	// (AVC1 output also strips parameter sets out of the NALU stream itself;
	// AVC3 output keeps them inline).
	DCR []byte
}

// Action is one item a Filter step produces: either a stream-format change
// or an output buffer, in emission order.
type Action struct {
	StreamFormat *StreamFormatAction
	Buffer       *OutputBuffer
}

// Filter is the synchronous, single-threaded coordinator composing the
// Splitter, Parser, and AccessUnitSplitter: (state, input buffer) -> (actions,
// state'). It holds no goroutines or channels; every method call completes
// before returning.
type Filter struct {
	opts FilterOptions
	log  zerolog.Logger

	mode           Mode
	modeFixed      bool
	inputStructure StreamStructure
	inputLenSize   int

	splitter *Splitter
	parser   *Parser
	auSplit  *AccessUnitSplitter
	tsGen    *TimestampGenerator
	tsGenHasReorderOffset bool

	framePrefix []byte

	spsCache map[uint32][]byte
	ppsCache map[uint32][]byte

	sawKeyframe  bool
	formatEmitted bool
	lastFormat   Format

	aus int64
}

// NewFilter constructs a Filter with the given options and a child logger
// derived from base (the host's logger), matching the teacher's convention
// of threading zerolog.Logger through long-lived components rather than the
// package-level log.Logger.
func NewFilter(opts FilterOptions, base zerolog.Logger) *Filter {
	f := &Filter{
		opts:     opts,
		log:      base.With().Str("component", "h264.Filter").Logger(),
		parser:   NewParser(),
		auSplit:  NewAccessUnitSplitter(),
		spsCache: make(map[uint32][]byte),
		ppsCache: make(map[uint32][]byte),
	}
	if len(opts.SPS) > 0 || len(opts.PPS) > 0 {
		f.framePrefix = buildAnnexBPrefix(opts.SPS, opts.PPS)
	}
	return f
}

func buildAnnexBPrefix(spss, ppss [][]byte) []byte {
	var out []byte
	for _, s := range spss {
		out = append(out, 0, 0, 0, 1)
		out = append(out, s...)
	}
	for _, p := range ppss {
		out = append(out, 0, 0, 0, 1)
		out = append(out, p...)
	}
	return out
}

// SetInputFormatAnnexB fixes the input stream structure to Annex B (the
// bytestream mode default, or an explicit host signal).
func (f *Filter) SetInputFormatAnnexB(alignment Mode) error {
	return f.setInputFormat(alignment, StructureAnnexB, 0)
}

// SetInputFormatAVC fixes the input stream structure to AVC1/AVC3 from a
// Decoder Configuration Record, merging its SPS/PPS into the parameter-set
// cache and rejecting a conflict with option-provided SPS/PPS.
func (f *Filter) SetInputFormatAVC(alignment Mode, avc3 bool, dcr []byte) error {
	record, err := ParseDCR(dcr)
	if err != nil {
		return err
	}
	if len(f.opts.SPS) > 0 || len(f.opts.PPS) > 0 {
		return newErr(KindParameterSetConflict, nil, "option-provided parameter sets conflict with DCR")
	}
	structure := StructureAVC1
	if avc3 {
		structure = StructureAVC3
	}
	if err := f.setInputFormat(alignment, structure, record.LengthSize()); err != nil {
		return err
	}
	for _, sps := range record.SPS {
		f.ingestParameterSet(TypeSPS, sps)
	}
	for _, pps := range record.PPS {
		f.ingestParameterSet(TypePPS, pps)
	}
	return nil
}

func (f *Filter) setInputFormat(alignment Mode, structure StreamStructure, lengthSize int) error {
	if f.modeFixed {
		if f.mode != alignment || f.inputStructure != structure || (structure != StructureAnnexB && f.inputLenSize != lengthSize) {
			return newErr(KindUnsupportedStreamStructureChange, nil,
				"input format changed mid-stream: %v/%v/%d -> %v/%v/%d",
				f.mode, f.inputStructure, f.inputLenSize, alignment, structure, lengthSize)
		}
		return nil
	}
	f.mode = alignment
	f.inputStructure = structure
	f.inputLenSize = lengthSize
	f.modeFixed = true
	f.splitter = NewSplitter(structure, lengthSize)
	return nil
}

func (f *Filter) ingestParameterSet(t Type, payload []byte) {
	prefix, body := []byte{}, payload
	n := f.parser.Parse(prefix, body)
	if n.Status != StatusValid {
		return
	}
	switch t {
	case TypeSPS:
		f.spsCache[n.ParsedFields.Uint("seq_parameter_set_id")] = payload
	case TypePPS:
		f.ppsCache[n.ParsedFields.Uint("pic_parameter_set_id")] = payload
	}
}

// Push feeds one input buffer through the splitter, parser, and AU splitter,
// returning the actions produced. inputTimestamps, if non-nil, is preserved
// onto the first NALU of this buffer in nalu_aligned mode only, per §4.9
// step 3.
func (f *Filter) Push(data []byte, inputTimestamps *Timestamps) ([]Action, error) {
	if f.framePrefix != nil {
		data = append(append([]byte{}, f.framePrefix...), data...)
		f.framePrefix = nil
	}

	raws, err := f.splitter.Split(data)
	if err != nil {
		return nil, err
	}
	if f.mode != ModeBytestream {
		flushed, err := f.splitter.Flush()
		if err != nil {
			return nil, err
		}
		raws = append(raws, flushed...)
	}

	var actions []Action
	for i, raw := range raws {
		n := f.parser.Parse(raw.StrippedPrefix, raw.Body)
		if inputTimestamps != nil && i == 0 && f.mode == ModeNALUAligned {
			n.Timestamps = *inputTimestamps
		}
		if n.Status != StatusValid {
			f.log.Debug().Str("type", n.Type.String()).Msg("dropping errored nalu, discarding pending access unit")
			f.auSplit.Discard()
			continue
		}

		var au *AccessUnit
		if f.mode == ModeAUAligned && i == len(raws)-1 {
			f.auSplit.Push(n)
			au = f.auSplit.Flush()
		} else {
			au = f.auSplit.Push(n)
		}
		if au == nil {
			continue
		}
		acts, err := f.completeAU(au)
		if err != nil {
			return actions, err
		}
		actions = append(actions, acts...)
	}
	return actions, nil
}

// Flush forces emission of any residual buffered NALU/AU, for end-of-stream.
func (f *Filter) Flush() ([]Action, error) {
	var actions []Action
	if f.splitter != nil {
		raws, err := f.splitter.Flush()
		if err != nil {
			return nil, err
		}
		for _, raw := range raws {
			n := f.parser.Parse(raw.StrippedPrefix, raw.Body)
			if n.Status != StatusValid {
				f.log.Debug().Str("type", n.Type.String()).Msg("dropping errored nalu, discarding pending access unit")
				f.auSplit.Discard()
				continue
			}
			if au := f.auSplit.Push(n); au != nil {
				acts, err := f.completeAU(au)
				if err != nil {
					return actions, err
				}
				actions = append(actions, acts...)
			}
		}
	}
	if au := f.auSplit.Flush(); au != nil {
		if au.PrimaryPicture() == nil {
			f.log.Debug().Msg("discarding trailing partial access unit with no primary picture")
		} else {
			acts, err := f.completeAU(au)
			if err != nil {
				return actions, err
			}
			actions = append(actions, acts...)
		}
	}
	return actions, nil
}

// completeAU runs §4.9 step 5 over one completed access unit.
func (f *Filter) completeAU(au *AccessUnit) ([]Action, error) {
	f.aus++
	var actions []Action

	changed := f.mergeParameterSets(au)
	structure := f.outputStructure()
	if !f.formatEmitted || changed {
		format, err := f.currentFormat()
		if err != nil {
			return actions, err
		}
		f.lastFormat = format
		f.formatEmitted = true

		var dcr []byte
		if structure == StructureAVC1 || structure == StructureAVC3 {
			dcr, err = f.buildDCR()
			if err != nil {
				return actions, err
			}
		}

		actions = append(actions, Action{StreamFormat: &StreamFormatAction{
			Alignment: f.opts.OutputAlignment,
			Format:    format,
			Structure: structure,
			DCR:       dcr,
		}})
	}

	if structure == StructureAVC1 {
		au = stripParameterSets(au)
	} else if au.IsKeyframe() && f.opts.RepeatParameterSets {
		au = f.prependCachedParameterSets(au)
	}

	if au.IsKeyframe() {
		f.sawKeyframe = true
	}
	if f.opts.SkipUntilKeyframe && !f.sawKeyframe {
		f.log.Debug().Msg("dropping access unit before first keyframe")
		return actions, nil
	}

	ts, err := f.assignTimestamps(au)
	if err != nil {
		return actions, err
	}

	buffers := f.buildOutputBuffers(au, ts)
	for _, b := range buffers {
		actions = append(actions, Action{Buffer: &b})
	}
	return actions, nil
}

func (f *Filter) mergeParameterSets(au *AccessUnit) bool {
	changed := false
	for _, n := range au.NALUs {
		switch n.Type {
		case TypeSPS:
			id := n.ParsedFields.Uint("seq_parameter_set_id")
			if prev, ok := f.spsCache[id]; !ok || string(prev) != string(n.Payload) {
				f.spsCache[id] = n.Payload
				changed = true
			}
		case TypePPS:
			id := n.ParsedFields.Uint("pic_parameter_set_id")
			if prev, ok := f.ppsCache[id]; !ok || string(prev) != string(n.Payload) {
				f.ppsCache[id] = n.Payload
				changed = true
			}
		}
	}
	return changed
}

func (f *Filter) currentFormat() (Format, error) {
	sps, ok := f.parser.State.LastSPS()
	if !ok {
		return Format{}, nil
	}
	return DeriveFormat(sps), nil
}

func (f *Filter) outputStructure() StreamStructure {
	if f.opts.FollowInputStructure {
		return f.inputStructure
	}
	return f.opts.OutputStructure
}

// outputLengthSize is the AVCC length-prefix size Filter writes on output,
// following the input's own length size when FollowInputStructure is set and
// an AVC input has actually been seen, else the configured default.
func (f *Filter) outputLengthSize() int {
	if f.opts.FollowInputStructure && f.inputLenSize > 0 {
		return f.inputLenSize
	}
	if f.opts.OutputLengthSize > 0 {
		return f.opts.OutputLengthSize
	}
	return 4
}

// buildDCR assembles a Decoder Configuration Record from the lowest-id cached
// SPS/PPS pair, returning nil with no error while no SPS or no PPS has been
// seen yet (e.g. the very first stream-format action, before any SPS/PPS NALU).
func (f *Filter) buildDCR() ([]byte, error) {
	sps, ok := lowestID(f.spsCache)
	if !ok {
		return nil, nil
	}
	pps, ok := lowestID(f.ppsCache)
	if !ok {
		return nil, nil
	}
	record, err := NewDCRFromSPSAndPPS(sps, pps)
	if err != nil {
		return nil, err
	}
	record.LengthSizeMinusOne = uint8(f.outputLengthSize() - 1)
	return record.Marshal(), nil
}

// lowestID returns the payload cached under the lowest numeric id in m, for
// deterministic DCR construction when multiple parameter sets are cached.
func lowestID(m map[uint32][]byte) ([]byte, bool) {
	var id uint32
	var found bool
	for k := range m {
		if !found || k < id {
			id, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return m[id], true
}

func stripParameterSets(au *AccessUnit) *AccessUnit {
	out := &AccessUnit{}
	for _, n := range au.NALUs {
		if n.Type == TypeSPS || n.Type == TypePPS {
			continue
		}
		out.NALUs = append(out.NALUs, n)
	}
	return out
}

func (f *Filter) prependCachedParameterSets(au *AccessUnit) *AccessUnit {
	have := map[Type]bool{}
	for _, n := range au.NALUs {
		if n.Type == TypeSPS || n.Type == TypePPS {
			have[n.Type] = true
		}
	}
	var prefix []*NALU
	if !have[TypeSPS] {
		for _, payload := range f.spsCache {
			prefix = append(prefix, &NALU{Type: TypeSPS, Payload: payload, Status: StatusValid})
		}
	}
	if !have[TypePPS] {
		for _, payload := range f.ppsCache {
			prefix = append(prefix, &NALU{Type: TypePPS, Payload: payload, Status: StatusValid})
		}
	}
	if len(prefix) == 0 {
		return au
	}
	out := &AccessUnit{NALUs: append(append([]*NALU{}, prefix...), au.NALUs...)}
	return out
}

func (f *Filter) assignTimestamps(au *AccessUnit) (Timestamps, error) {
	primary := au.PrimaryPicture()
	if primary != nil && primary.Timestamps.HasPTS {
		return primary.Timestamps, nil
	}
	if !f.opts.GenerateBestEffortTimestamps {
		return Timestamps{}, nil
	}
	if f.tsGen == nil {
		maxReorder := int64(DefaultMaxReorderFrames)
		haveReorderOffset := f.opts.AddDTSOffset != nil
		if sps, ok := f.parser.State.LastSPS(); ok {
			if v, ok := sps["vui_max_num_reorder_frames"]; ok {
				maxReorder = int64(v.(uint32))
				haveReorderOffset = true
			}
		}
		f.tsGen = NewTimestampGenerator(f.opts.Framerate, f.opts.TimeUnitPerSec, maxReorder, f.opts.AddDTSOffset)
		f.tsGenHasReorderOffset = haveReorderOffset
	}
	return f.tsGen.Next(f.lastFormat.Profile, f.tsGenHasReorderOffset)
}

// seiPayloadsFor decodes n's supplemental-enhancement-information payloads
// when n is a SEI NALU, for informational surfacing on its NALUMetadata.
func seiPayloadsFor(n *NALU) []SEIPayload {
	if n.Type != TypeSEI || len(n.Payload) < 1 {
		return nil
	}
	return ParseSEIPayloads(stripEmulationPrevention(n.Payload[1:]))
}

// naluPrefix returns the framing bytes Filter writes ahead of one NALU's
// payload on output: a 4-byte Annex B start code, or a big-endian
// lengthSize-byte AVCC length prefix.
func naluPrefix(structure StreamStructure, lengthSize, payloadLen int) []byte {
	if structure == StructureAnnexB {
		return []byte{0, 0, 0, 1}
	}
	b := make([]byte, lengthSize)
	v := uint32(payloadLen)
	for i := lengthSize - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// buildOutputBuffers wraps au into one buffer per the configured output
// alignment, writing real Annex B start codes or AVCC length prefixes ahead
// of every NALU per the output stream structure, with contiguous, gap-free
// metadata spans per §6's offset-contiguity invariant. PrefixedOffset/
// PrefixedLen cover the framing bytes plus payload; UnprefixedOffset/
// UnprefixedLen cover the payload alone.
func (f *Filter) buildOutputBuffers(au *AccessUnit, ts Timestamps) []OutputBuffer {
	structure := f.outputStructure()
	lengthSize := f.outputLengthSize()

	if f.opts.OutputAlignment == AlignmentNALU {
		var out []OutputBuffer
		for i, n := range au.NALUs {
			prefix := naluPrefix(structure, lengthSize, len(n.Payload))
			payload := append(append([]byte{}, prefix...), n.Payload...)
			out = append(out, OutputBuffer{
				Payload:  payload,
				KeyFrame: n.IsKeyframe(),
				NALUs: []NALUMetadata{{
					Type:             n.Type,
					PrefixedOffset:   0,
					PrefixedLen:      len(payload),
					UnprefixedOffset: len(prefix),
					UnprefixedLen:    len(n.Payload),
					NewAccessUnit:    i == 0,
					EndAccessUnit:    i == len(au.NALUs)-1,
					SEI:              seiPayloadsFor(n),
				}},
				Timestamps: ts,
			})
		}
		return out
	}

	var payload []byte
	var metas []NALUMetadata
	offset := 0
	for i, n := range au.NALUs {
		prefix := naluPrefix(structure, lengthSize, len(n.Payload))
		start := offset
		payload = append(payload, prefix...)
		payload = append(payload, n.Payload...)
		offset += len(prefix) + len(n.Payload)
		metas = append(metas, NALUMetadata{
			Type:             n.Type,
			PrefixedOffset:   start,
			PrefixedLen:      len(prefix) + len(n.Payload),
			UnprefixedOffset: start + len(prefix),
			UnprefixedLen:    len(n.Payload),
			NewAccessUnit:    i == 0,
			EndAccessUnit:    i == len(au.NALUs)-1,
			SEI:              seiPayloadsFor(n),
		})
	}
	return []OutputBuffer{{
		Payload:    payload,
		KeyFrame:   au.IsKeyframe(),
		NALUs:      metas,
		Timestamps: ts,
	}}
}

// PushTo is Push followed by forwarding every produced Action to sink, in
// order, stopping at the first Sink error.
func (f *Filter) PushTo(data []byte, inputTimestamps *Timestamps, sink Sink) error {
	actions, err := f.Push(data, inputTimestamps)
	if err != nil {
		return err
	}
	return writeActions(actions, sink)
}

// FlushTo is Flush followed by forwarding every produced Action to sink.
func (f *Filter) FlushTo(sink Sink) error {
	actions, err := f.Flush()
	if err != nil {
		return err
	}
	return writeActions(actions, sink)
}

func writeActions(actions []Action, sink Sink) error {
	for _, a := range actions {
		if err := sink.WriteAction(a); err != nil {
			return err
		}
	}
	return nil
}
