package jungle

import (
	"encoding/xml"
	"errors"

	"github.com/spf13/afero"
)

type manifestXML struct {
	Application struct {
		ID       string `xml:"id,attr"`
		Entry    string `xml:"entry,attr"`
		Products []struct {
			ID string `xml:"id,attr"`
		} `xml:"products>product"`
	} `xml:"application"`
}

// readManifest fills in the application id, entry class and products.
func readManifest(fsys afero.Fs, cfg *Config) error {
	data, err := afero.ReadFile(fsys, cfg.Manifest)
	if err != nil {
		return &ConfigError{File: cfg.Manifest, Msg: "cannot read manifest", Err: err}
	}
	var m manifestXML
	if err := xml.Unmarshal(data, &m); err != nil {
		ce := &ConfigError{File: cfg.Manifest, Msg: err.Error(), Err: err}
		var se *xml.SyntaxError
		if errors.As(err, &se) {
			ce.Line, ce.Col, ce.Msg = se.Line, 1, se.Msg
		}
		return ce
	}
	cfg.AppID = m.Application.ID
	cfg.Entry = m.Application.Entry
	for _, p := range m.Application.Products {
		if p.ID != "" {
			cfg.Products = append(cfg.Products, p.ID)
		}
	}
	return nil
}
