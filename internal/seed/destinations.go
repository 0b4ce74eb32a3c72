package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Destination is one place seeded posts may be about.
type Destination struct {
	Name       string   `yaml:"name"`
	City       string   `yaml:"city"`
	Country    string   `yaml:"country"`
	Lat        float64  `yaml:"lat"`
	Lng        float64  `yaml:"lng"`
	Categories []string `yaml:"categories"`
}

type destinationFile struct {
	Destinations []Destination `yaml:"destinations"`
}

// DefaultDestinations is used when no fixture file is given.
var DefaultDestinations = []Destination{
	{Name: "Colosseum", City: "Rome", Country: "Italy", Lat: 41.8902, Lng: 12.4922, Categories: []string{"sightseeing", "history"}},
	{Name: "Trastevere", City: "Rome", Country: "Italy", Lat: 41.8897, Lng: 12.4708, Categories: []string{"food", "nightlife"}},
	{Name: "Amalfi Coast", Country: "Italy", Lat: 40.6340, Lng: 14.6027, Categories: []string{"beach", "scenic"}},
	{Name: "Alfama", City: "Lisbon", Country: "Portugal", Lat: 38.7118, Lng: -9.1300, Categories: []string{"culture", "food"}},
	{Name: "Shibuya Crossing", City: "Tokyo", Country: "Japan", Lat: 35.6595, Lng: 139.7005, Categories: []string{"city", "nightlife"}},
	{Name: "Fushimi Inari", City: "Kyoto", Country: "Japan", Lat: 34.9671, Lng: 135.7727, Categories: []string{"culture", "hiking"}},
	{Name: "Torres del Paine", Country: "Chile", Lat: -50.9423, Lng: -73.4068, Categories: []string{"hiking", "nature"}},
	{Name: "Medina", City: "Marrakesh", Country: "Morocco", Lat: 31.6295, Lng: -7.9811, Categories: []string{"shopping", "culture"}},
	{Name: "Ubud", City: "Bali", Country: "Indonesia", Lat: -8.5069, Lng: 115.2625, Categories: []string{"wellness", "nature"}},
	{Name: "Banff National Park", Country: "Canada", Lat: 51.4968, Lng: -115.9281, Categories: []string{"nature", "hiking"}},
}

// ParseDestinations decodes a YAML fixture of destinations.
func ParseDestinations(data []byte) ([]Destination, error) {
	var f destinationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse destinations: %w", err)
	}
	for i, d := range f.Destinations {
		if d.Name == "" || d.Country == "" {
			return nil, fmt.Errorf("destination %d: name and country are required", i)
		}
	}
	if len(f.Destinations) == 0 {
		return nil, fmt.Errorf("parse destinations: no destinations")
	}
	return f.Destinations, nil
}

// LoadDestinations reads a fixture file; an empty path yields the defaults.
func LoadDestinations(path string) ([]Destination, error) {
	if path == "" {
		return DefaultDestinations, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read destinations: %w", err)
	}
	return ParseDestinations(data)
}
