package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

type WebRTC struct {
	ICEServers []ICEServer `yaml:"iceServers"`
}

func DefaultICEServers() []ICEServer {
	return []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
	}
}

func (w WebRTC) Validate() error {
	for i, s := range w.ICEServers {
		if err := validateICEServer(s.toPion()); err != nil {
			return fmt.Errorf("webrtc.iceServers[%d]: %w", i, err)
		}
	}
	return nil
}

// PeerICEServers is the list handed to browsers for RTCPeerConnection.
func (w WebRTC) PeerICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(w.ICEServers))
	for _, s := range w.ICEServers {
		out = append(out, s.toPion())
	}
	return out
}

func (s ICEServer) toPion() webrtc.ICEServer {
	urls := make([]string, 0, len(s.URLs))
	for _, u := range s.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	out := webrtc.ICEServer{URLs: urls, Username: strings.TrimSpace(s.Username)}
	if strings.TrimSpace(s.Credential) != "" {
		out.Credential = s.Credential
	}
	return out
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	requiresTurnCreds := false
	for _, url := range server.URLs {
		switch {
		case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
		case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
			requiresTurnCreds = true
		default:
			return fmt.Errorf("unsupported url scheme: %q", url)
		}
	}

	if requiresTurnCreds {
		if server.Username == "" {
			return errors.New("turn urls require username")
		}
		cred, ok := server.Credential.(string)
		if !ok || strings.TrimSpace(cred) == "" {
			return errors.New("turn urls require credential")
		}
	}
	return nil
}
