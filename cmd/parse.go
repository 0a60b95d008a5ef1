package cmd

import (
	"bufio"
	"io"
	"os"

	"github.com/bugVanisher/h264avc/h264"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse an H.264 elementary stream file and print one JSON line per access unit or stream-format change",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		return runParse(parseArgsVal)
	},
}

type parseArgs struct {
	sourceFile          string
	dcrFile             string
	avc3                bool
	skipUntilKeyframe   bool
	repeatParameterSets bool
	framerate           int
	outputStructure     string
}

var parseArgsVal parseArgs

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseArgsVal.sourceFile, "file", "f", "", "elementary stream file to parse")
	parseCmd.MarkFlagRequired("file")
	parseCmd.Flags().StringVar(&parseArgsVal.dcrFile, "dcr-file", "", "Decoder Configuration Record file; presence switches the input from Annex B to length-prefixed AVCC")
	parseCmd.Flags().BoolVar(&parseArgsVal.avc3, "avc3", false, "with --dcr-file, treat the stream as AVC3 (SPS/PPS may also appear inline) instead of AVC1")
	parseCmd.Flags().BoolVar(&parseArgsVal.skipUntilKeyframe, "skip-until-keyframe", true, "drop access units preceding the first keyframe")
	parseCmd.Flags().BoolVar(&parseArgsVal.repeatParameterSets, "repeat-parameter-sets", false, "prepend cached SPS/PPS to every keyframe access unit")
	parseCmd.Flags().IntVar(&parseArgsVal.framerate, "framerate", 0, "constant framerate numerator (denominator 1) for best-effort timestamps, 0 to disable")
	parseCmd.Flags().StringVar(&parseArgsVal.outputStructure, "output-structure", "", "annexb|avc1|avc3, overrides following the input stream structure")
}

// auSummary is the per-action line this subcommand prints: the debug/
// inspection surface a host integrator reaches for first, mirroring the
// role the teacher's push/pull subcommands play for an RTMP endpoint.
type auSummary struct {
	Event       string   `json:"event"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	Profile     string   `json:"profile,omitempty"`
	KeyFrame    bool     `json:"key_frame,omitempty"`
	PTS         int64    `json:"pts,omitempty"`
	DTS         int64    `json:"dts,omitempty"`
	NALUTypes   []string `json:"nalu_types,omitempty"`
	SEIUnixNano []int64  `json:"sei_unix_nano,omitempty"`
	DCRLen      int      `json:"dcr_len,omitempty"`
}

func runParse(a parseArgs) error {
	f, err := os.Open(a.sourceFile)
	if err != nil {
		return err
	}
	defer f.Close()

	opts := h264.DefaultFilterOptions()
	opts.SkipUntilKeyframe = a.skipUntilKeyframe
	opts.RepeatParameterSets = a.repeatParameterSets
	if a.framerate > 0 {
		opts.GenerateBestEffortTimestamps = true
		opts.Framerate = h264.Framerate{Frames: int64(a.framerate), Seconds: 1}
	}
	switch a.outputStructure {
	case "":
	case "annexb":
		opts.FollowInputStructure = false
		opts.OutputStructure = h264.StructureAnnexB
	case "avc1":
		opts.FollowInputStructure = false
		opts.OutputStructure = h264.StructureAVC1
	case "avc3":
		opts.FollowInputStructure = false
		opts.OutputStructure = h264.StructureAVC3
	default:
		return errors.Errorf("unknown --output-structure %q", a.outputStructure)
	}

	filter := h264.NewFilter(opts, log.Logger)
	if a.dcrFile != "" {
		dcr, err := os.ReadFile(a.dcrFile)
		if err != nil {
			return errors.Wrap(err, "reading decoder configuration record")
		}
		if err := filter.SetInputFormatAVC(h264.ModeBytestream, a.avc3, dcr); err != nil {
			return err
		}
	} else {
		if err := filter.SetInputFormatAnnexB(h264.ModeBytestream); err != nil {
			return err
		}
	}

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	sink := &printSink{enc: enc}

	reader := bufio.NewReaderSize(f, 1<<20)
	buf := make([]byte, 1<<18)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if err := filter.PushTo(buf[:n], nil, sink); err != nil {
				log.Warn().Err(err).Msg("dropping malformed input chunk")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return filter.FlushTo(sink)
}

// printSink adapts h264.Filter's Sink collaborator to the CLI's stdout JSON
// stream, the same role mock_conn.go's MockConn plays in tests but wired to
// a real writer here.
type printSink struct {
	enc *jsoniter.Encoder
}

func (s *printSink) WriteAction(action h264.Action) error {
	if action.StreamFormat != nil {
		return s.enc.Encode(auSummary{
			Event:   "stream_format",
			Width:   action.StreamFormat.Format.Width,
			Height:  action.StreamFormat.Format.Height,
			Profile: action.StreamFormat.Format.Profile,
			DCRLen:  len(action.StreamFormat.DCR),
		})
	}
	if action.Buffer != nil {
		types := make([]string, 0, len(action.Buffer.NALUs))
		var seiTimestamps []int64
		for _, n := range action.Buffer.NALUs {
			types = append(types, n.Type.String())
			for _, p := range n.SEI {
				if ts, ok := h264.DecodeTimestampSEI(p); ok {
					seiTimestamps = append(seiTimestamps, ts.UnixNano)
				}
			}
		}
		return s.enc.Encode(auSummary{
			Event:       "access_unit",
			KeyFrame:    action.Buffer.KeyFrame,
			PTS:         action.Buffer.Timestamps.PTS,
			DTS:         action.Buffer.Timestamps.DTS,
			NALUTypes:   types,
			SEIUnixNano: seiTimestamps,
		})
	}
	return nil
}
