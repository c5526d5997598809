package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ThreadSentinel/internal/model"
)

// Seed declares the accounts and campaigns to load into the store on start.
type Seed struct {
	Accounts  []SeedAccount  `yaml:"accounts"`
	Campaigns []SeedCampaign `yaml:"campaigns"`
}

type SeedAccount struct {
	ID              string `yaml:"id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	ProxyURL        string `yaml:"proxy_url"`
	CooldownMinutes int    `yaml:"cooldown_minutes"`
	Disabled        bool   `yaml:"disabled"`
}

type SeedCampaign struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	WebsiteURL         string   `yaml:"website_url"`
	Description        string   `yaml:"description"`
	ReplyTemplate      string   `yaml:"reply_template"`
	Paused             bool     `yaml:"paused"`
	IntervalMinutes    int      `yaml:"interval_minutes"`
	MaxPostsPerDay     int      `yaml:"max_posts_per_day"`
	Subreddits         []string `yaml:"subreddits"`
	Keywords           []string `yaml:"keywords"`
	NegativeKeywords   []string `yaml:"negative_keywords"`
	CustomerSegments   []string `yaml:"customer_segments"`
	RelevanceThreshold float64  `yaml:"relevance_threshold"`
}

// LoadSeed reads and checks a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	s := &Seed{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return s, nil
}

func (s *Seed) validate() error {
	seen := make(map[string]bool)
	for i, a := range s.Accounts {
		if a.ID == "" || a.Username == "" {
			return fmt.Errorf("accounts[%d]: id and username are required", i)
		}
		if seen["a:"+a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %s", i, a.ID)
		}
		seen["a:"+a.ID] = true
	}
	for i, c := range s.Campaigns {
		if c.ID == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("campaigns[%d]: id and name are required", i)
		}
		if seen["c:"+c.ID] {
			return fmt.Errorf("campaigns[%d]: duplicate id %s", i, c.ID)
		}
		seen["c:"+c.ID] = true
		if c.IntervalMinutes <= 0 || c.MaxPostsPerDay <= 0 {
			return fmt.Errorf("campaign %s: interval_minutes and max_posts_per_day must be positive", c.ID)
		}
	}
	return nil
}

// Apply copies the declared fields onto a, leaving runtime state alone.
func (a SeedAccount) Apply(dst *model.Account) {
	dst.ID = a.ID
	dst.Credentials = model.Credentials{
		Username:     a.Username,
		Password:     a.Password,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
	}
	dst.ProxyURL = a.ProxyURL
	dst.CooldownMinutes = a.CooldownMinutes
	dst.IsDiscussionPoster = !a.Disabled
	dst.IsValidated = true
}

// NewAccount builds a fresh pool account from the seed.
func (a SeedAccount) NewAccount() *model.Account {
	acct := &model.Account{Status: model.AccountActive, IsAvailable: true}
	a.Apply(acct)
	return acct
}

// Apply copies the declared fields onto c, leaving counters and schedule alone.
func (sc SeedCampaign) Apply(dst *model.Campaign) {
	dst.ID = sc.ID
	dst.Name = sc.Name
	dst.WebsiteURL = sc.WebsiteURL
	dst.Description = sc.Description
	dst.ReplyTemplate = sc.ReplyTemplate
	dst.Enabled = true
	dst.Status = model.CampaignActive
	if sc.Paused {
		dst.Status = model.CampaignPaused
	}
	dst.IntervalMinutes = sc.IntervalMinutes
	dst.MaxPostsPerDay = sc.MaxPostsPerDay
	dst.Subreddits = sc.Subreddits
	if len(dst.Subreddits) == 0 || dst.RotationIndex >= len(dst.Subreddits) {
		dst.RotationIndex = 0
	}
	dst.Profile = model.TargetingProfile{
		Keywords:           sc.Keywords,
		NegativeKeywords:   sc.NegativeKeywords,
		CustomerSegments:   sc.CustomerSegments,
		RelevanceThreshold: sc.RelevanceThreshold,
	}
}

// NewCampaign builds a fresh campaign from the seed.
func (sc SeedCampaign) NewCampaign() *model.Campaign {
	c := &model.Campaign{}
	sc.Apply(c)
	return c
}
