package memstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users []struct {
		ID          string `yaml:"id"`
		DisplayName string `yaml:"displayName"`
	} `yaml:"users"`
	Conversations []struct {
		ID           string   `yaml:"id"`
		Participants []string `yaml:"participants"`
		GroupName    string   `yaml:"groupName"`
		Admin        string   `yaml:"admin"`
	} `yaml:"conversations"`
}

// LoadSeedFile fills the store from a yaml file. A conversation with a
// groupName is a group chat.
func (s *Store) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.LoadSeed(data)
}

func (s *Store) LoadSeed(data []byte) error {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	for _, u := range f.Users {
		if u.ID == "" {
			return errors.New("seed: user without id")
		}
		s.PutUser(domain.Identity{ID: domain.UserID(u.ID), DisplayName: u.DisplayName})
	}
	for _, c := range f.Conversations {
		if c.ID == "" || len(c.Participants) == 0 {
			return fmt.Errorf("seed: conversation %q needs an id and participants", c.ID)
		}
		conv := domain.Conversation{
			ID:        c.ID,
			IsGroup:   c.GroupName != "",
			GroupName: c.GroupName,
			AdminID:   domain.UserID(c.Admin),
		}
		for _, p := range c.Participants {
			conv.Participants = append(conv.Participants, domain.UserID(p))
		}
		s.PutConversation(conv)
	}
	return nil
}
