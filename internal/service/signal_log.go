package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// logSignal writes a short description of a relayed payload at debug level.
// Payloads are never rejected here: an unparsable body is logged as such and still relayed.
func logSignal(ctx context.Context, kind string, sig protocol.Signal) {
	log := logger.FromContext(ctx)
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []any{"kind", kind, "meeting", sig.MeetingID, "target", sig.TargetConnectionID, "bytes", len(sig.Payload)}

	switch kind {
	case protocol.TypeOffer, protocol.TypeAnswer:
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(sig.Payload, &desc); err != nil {
			attrs = append(attrs, "sdp", "unparsable")
			break
		}
		parsed, err := desc.Unmarshal()
		if err != nil {
			attrs = append(attrs, "sdp", "unparsable")
			break
		}
		attrs = append(attrs, "sdp_type", desc.Type.String(), "media", mediaSummary(parsed))
	case protocol.TypeIceCandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Payload, &cand); err == nil {
			attrs = append(attrs, "candidate", candidateKind(cand.Candidate))
		}
	}

	log.Debug("relay signal", attrs...)
}

// mediaSummary renders m-lines as "audio:sendrecv,video:recvonly".
func mediaSummary(desc *sdp.SessionDescription) string {
	parts := make([]string, 0, len(desc.MediaDescriptions))
	for _, md := range desc.MediaDescriptions {
		dir := "sendrecv"
		for _, d := range []string{"sendonly", "recvonly", "inactive"} {
			if _, ok := md.Attribute(d); ok {
				dir = d
				break
			}
		}
		parts = append(parts, md.MediaName.Media+":"+dir)
	}
	return strings.Join(parts, ",")
}

// candidateKind extracts the "typ" field (host, srflx, relay) of an ICE candidate line.
func candidateKind(line string) string {
	fields := strings.Fields(line)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "typ" {
			return fields[i+1]
		}
	}
	if line == "" {
		return "end-of-candidates"
	}
	return "unknown"
}
