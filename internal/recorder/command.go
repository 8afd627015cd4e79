package recorder

import (
	"fmt"
	"strings"
)

// Encode holds the capture-encode parameters. Codec "copy" means stream
// pass-through; Transcode switches to inline re-encoding with the
// codec/quality/preset triple.
type Encode struct {
	FFmpegBin string
	Transcode bool
	Codec     string
	CRF       string
	Preset    string
	HWArgs    string // hardware init args, placed before -i as global options
	VFArgs    string // video filter chain, placed after -i
}

// BuildArgs constructs the ffmpeg argument list for one channel capture: an
// RTSP input over TCP producing HLS segments named %H%M%S.ts in outDir with
// wall-clock program-date-time tags.
func BuildArgs(enc Encode, source, outDir string, segmentSeconds int) []string {
	args := []string{
		"-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-fflags", "+genpts+igndts+discardcorrupt",
	}

	if enc.Transcode && enc.HWArgs != "" {
		// Hardware device init must precede -i.
		args = append(strings.Fields(enc.HWArgs), args...)
	}

	args = append(args, "-i", source)

	if enc.Transcode {
		codec := enc.Codec
		if codec == "" || codec == "copy" {
			codec = "libx265"
		}
		if enc.VFArgs != "" {
			args = append(args, "-vf", enc.VFArgs)
		}
		args = append(args, "-c:v", codec)
		if strings.Contains(codec, "vaapi") || strings.Contains(codec, "qsv") {
			args = append(args, "-rc_mode", "CQP", "-qp", enc.CRF)
		} else {
			args = append(args, "-crf", enc.CRF, "-preset", enc.Preset)
		}
		args = append(args, "-c:a", "aac")
		args = append(args, "-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", segmentSeconds))
	} else {
		args = append(args, "-c:v", "copy", "-c:a", "aac")
	}

	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", segmentSeconds),
		"-hls_list_size", "0",
		"-hls_flags", "append_list+program_date_time",
		"-strftime", "1",
		"-hls_segment_filename", outDir+"/%H%M%S.ts",
		outDir+"/playlist.m3u8",
	)
	return args
}
