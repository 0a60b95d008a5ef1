package h264

import "github.com/pkg/errors"

// Kind tags the seven error conditions spec.md §7 names. It lets callers
// programmatically distinguish failure modes with errors.As, the same role
// common/errs.Error.Code plays for the teacher's RTMP-facing errors.
type Kind int

const (
	// KindMalformedHeader: forbidden_zero_bit=1 or unexpected EOF in the
	// NALU header. Contained to the single NALU.
	KindMalformedHeader Kind = iota
	// KindSpsUnavailable: a slice references an SPS id not yet cached.
	// Contained to the single NALU.
	KindSpsUnavailable
	// KindMalformedField: a scheme directive failed a bit-level read.
	// Contained to the single NALU.
	KindMalformedField
	// KindParameterSetConflict: both an option-provided SPS/PPS and a DCR
	// carry parameter sets. Fatal at stream-format time.
	KindParameterSetConflict
	// KindUnsupportedStreamStructureChange: AnnexB<->AVC switch, or a
	// length_size change within the same AVC variant, mid-stream. Fatal.
	KindUnsupportedStreamStructureChange
	// KindUnsupportedProfileForTsGen: timestamp generation requested for a
	// profile known to reorder frames without an explicit DTS offset.
	// Fatal at first SPS.
	KindUnsupportedProfileForTsGen
	// KindMalformedDcr: Decoder Configuration Record parse failure. Fatal
	// at stream-format time.
	KindMalformedDcr
)

func (k Kind) String() string {
	switch k {
	case KindMalformedHeader:
		return "malformed_header"
	case KindSpsUnavailable:
		return "sps_unavailable"
	case KindMalformedField:
		return "malformed_field"
	case KindParameterSetConflict:
		return "parameter_set_conflict"
	case KindUnsupportedStreamStructureChange:
		return "unsupported_stream_structure_change"
	case KindUnsupportedProfileForTsGen:
		return "unsupported_profile_for_ts_gen"
	case KindMalformedDcr:
		return "malformed_dcr"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind must tear the stream down,
// rather than being contained to the offending NALU/AU.
func (k Kind) Fatal() bool {
	switch k {
	case KindParameterSetConflict, KindUnsupportedStreamStructureChange,
		KindUnsupportedProfileForTsGen, KindMalformedDcr:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with the Kind of spec.md §7 failure it
// represents, in the shape of the teacher's common/errs.Error (Code+Msg)
// but carrying the original error for errors.Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// errSpsUnavailableSentinel is the load_global "not found" sentinel passed
// to the slice-header scheme. The parser facade records it, like any other
// scheme failure, only as status=error on the NALU; no Error is built from it.
var errSpsUnavailableSentinel = errors.New("h264: referenced parameter set not available")

// newErr builds a Kind-tagged Error, wrapping cause with pkg/errors so a
// stack trace is attached the way common/errs/Wrapf attaches one.
func newErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Msg:  errors.Errorf(format, args...).Error(),
		Err:  errors.WithStack(cause),
	}
}
