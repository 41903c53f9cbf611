// Package receipt lays out voter receipts as HTML and rasterizes them
// for the thermal printer and for sharing.
package receipt

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/janneta/canvass/candidate"
	"github.com/janneta/canvass/voter"
)

// Layout selects the receipt geometry.
type Layout int

const (
	// Print is the narrow layout sent to the 58 mm thermal printer.
	Print Layout = iota
	// Share is the wider layout uploaded and linked in WhatsApp.
	Share
)

// RootID is the id of the element a renderer captures.
const RootID = "receipt"

// FontURL is the stylesheet providing the Devanagari font.
const FontURL = "https://fonts.googleapis.com/css2?family=Noto+Sans+Devanagari:wght@400;700&display=swap"

type geometry struct {
	Width      int
	Padding    int
	Capture    int
	LineHeight string
	BoxSizing  string
}

var geometries = map[Layout]geometry{
	Print: {Width: 200, Padding: 10, Capture: 230, LineHeight: "1.3", BoxSizing: "content-box"},
	Share: {Width: 380, Padding: 15, Capture: 380, LineHeight: "1.4", BoxSizing: "border-box"},
}

// CaptureWidth is the width in CSS pixels of the captured area.
func (l Layout) CaptureWidth() int {
	return geometries[l].Capture
}

func (l Layout) String() string {
	if l == Share {
		return "share"
	}
	return "print"
}

// Data is what a receipt shows. With a non-empty Family the family
// variant is used.
type Data struct {
	Candidate candidate.Info
	Voter     voter.Voter
	Family    []voter.Member
}

type view struct {
	Data
	Geometry geometry
	RootID   string
	FontURL  string
	Members  []voter.Voter
}

var funcs = template.FuncMap{
	// members are numbered after the head voter, who is 1)
	"memberNo": func(i int) int { return i + 2 },
}

var templates = template.Must(template.New("receipt").Funcs(funcs).Parse(pageTemplate))

// HTML returns the receipt document for layout.
func HTML(layout Layout, d Data) (string, error) {
	g, ok := geometries[layout]
	if !ok {
		return "", fmt.Errorf("unknown receipt layout %d", layout)
	}
	v := view{Data: d, Geometry: g, RootID: RootID, FontURL: FontURL}
	for _, m := range d.Family {
		v.Members = append(v.Members, m.Voter())
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, layout.String(), v); err != nil {
		return "", fmt.Errorf("failed to render %s receipt, error %v", layout, err)
	}
	return buf.String(), nil
}

const pageTemplate = `
{{define "head"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<link rel="stylesheet" href="{{.FontURL}}">
<style>
  html, body { margin: 0; padding: 0; background: #fff; }
  #{{.RootID}} { width: {{.Geometry.Capture}}px; background: #fff; }
  .sheet {
    width: {{.Geometry.Width}}px;
    padding: {{.Geometry.Padding}}px;
    box-sizing: {{.Geometry.BoxSizing}};
    background: #fff;
    color: #000;
    font-family: "Noto Sans Devanagari", sans-serif;
    font-size: 14px;
    line-height: {{.Geometry.LineHeight}};
  }
</style>
</head>
<body>
<div id="{{.RootID}}"><div class="sheet">{{end}}

{{define "foot"}}</div></div>
</body>
</html>{{end}}

{{define "print"}}{{template "head" .}}
  <div style="text-align:center;font-weight:700;font-size:13px;border-bottom:1px solid #000;padding-bottom:8px;">
    {{.Candidate.Party}}<br/>
    <div style="font-size:18px;margin:4px 0;">{{.Candidate.Name}}</div>
    <div style="font-size:14px;">{{.Candidate.Slogan}}</div>
    <div style="font-size:14px;margin-top:4px;padding-bottom:8px;">{{.Candidate.Area}}</div>
  </div>
{{- if .Members}}
  <div style="text-align:center;margin-top:6px;font-size:14px;"><b>कुटुंब तपशील</b></div>
  <div style="margin-top:6px;font-size:14px;"><b>1) {{.Voter.Name}}</b></div>
  <div style="font-size:14px;">अनुक्रमांक: {{.Voter.SerialNumber}}</div>
  <div style="font-size:14px;">मतदार आयडी: {{.Voter.VoterID}}</div>
  <div style="font-size:14px;">बूथ क्रमांक: {{.Voter.BoothNumber}}</div>
  <div style="font-size:14px;">लिंग: {{.Voter.Gender}}</div>
  <div style="font-size:14px;">वय: {{.Voter.Age}}</div>
  <div style="margin-top:4px;border-bottom:1px solid #000;padding-bottom:10px;font-size:14px;">मतदान केंद्र: {{.Voter.PollingStationAddress}}</div>
  {{- range $i, $m := .Members}}
  <div style="margin-top:6px;font-size:14px;margin-bottom:2px;border-bottom:1px solid #000;padding-bottom:10px;">
    <div style="font-weight:700;">{{memberNo $i}}) {{$m.Name}}</div>
    <div style="margin-top:4px;">अनुक्रमांक: {{$m.SerialNumber}}</div>
    <div style="margin-top:2px;">मतदार आयडी: {{$m.VoterID}}</div>
    <div style="margin-top:2px;">बूथ क्रमांक: {{$m.BoothNumber}}</div>
    <div style="margin-top:2px;">लिंग: {{$m.Gender}}</div>
    <div style="margin-top:2px;">वय: {{$m.Age}}</div>
    <div style="margin-top:4px;font-size:13px;">मतदान केंद्र: {{$m.PollingStationAddress}}</div>
  </div>
  {{- end}}
  <div style="margin-top:6px;border-top:1px solid #000;padding-top:6px;font-size:13px;">
    मी आपला <b>{{.Candidate.Name}}</b> माझी निशाणी <b>{{.Candidate.ElectionSymbol}}</b> या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा
  </div>
  <div style="margin-top:18px;text-align:center;"></div>
{{- else}}
  <div style="text-align:center;margin-top:6px;font-weight:700;">मतदार तपशील</div>
  <div style="margin-top:6px;"><b>नाव:</b> {{.Voter.Name}}</div>
  <div style="margin-top:4px;"><b>मतदार आयडी:</b> {{.Voter.VoterID}}</div>
  <div style="margin-top:4px;"><b>अनुक्रमांक:</b> {{.Voter.SerialNumber}}</div>
  <div style="margin-top:4px;"><b>बूथ क्रमांक:</b> {{.Voter.BoothNumber}}</div>
  <div style="margin-top:4px;"><b>लिंग:</b> {{.Voter.Gender}}</div>
  <div style="margin-top:4px;"><b>वय:</b> {{.Voter.Age}}</div>
  <div style="margin-top:6px;margin-bottom:10px;"><b>मतदान केंद्र:</b> {{.Voter.PollingStationAddress}}</div>
  <div style="margin-top:6px;border-top:1px solid #000;padding-top:6px;font-size:13px;">
    मी आपला <b>{{.Candidate.Name}}</b> माझी निशाणी <b>{{.Candidate.ElectionSymbol}}</b> या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा
  </div>
  <div style="margin-top:6px;text-align:center;font-weight:700;">{{.Candidate.Name}}</div>
  <div style="margin-top:18px;"></div>
{{- end}}
{{template "foot" .}}{{end}}

{{define "share"}}{{template "head" .}}
  <div style="text-align:center;font-weight:700;font-size:16px;border-bottom:2px solid #000;padding-bottom:10px;margin-bottom:10px;">
    {{.Candidate.Party}}<br/>
    <div style="font-size:24px;margin:8px 0;color:#1e40af;">{{.Candidate.Name}}</div>
    <div style="font-size:14px;color:#555;">{{.Candidate.Slogan}}</div>
    <div style="font-size:14px;margin-top:6px;color:#666;">{{.Candidate.Area}}</div>
  </div>
{{- if .Members}}
  <div style="text-align:center;margin-top:10px;font-size:18px;font-weight:700;color:#1e40af;margin-bottom:15px;">कुटुंब तपशील</div>
  <div style="margin-bottom:15px;padding-bottom:10px;border-bottom:1px solid #ddd;">
    <div style="font-weight:700;font-size:16px;margin-bottom:5px;">1) {{.Voter.Name}}</div>
    <div style="margin:2px 0;">अनुक्रमांक: {{.Voter.SerialNumber}}</div>
    <div style="margin:2px 0;">मतदार आयडी: {{.Voter.VoterID}}</div>
    <div style="margin:2px 0;">बूथ क्रमांक: {{.Voter.BoothNumber}}</div>
    <div style="margin:2px 0;">लिंग: {{.Voter.Gender}}</div>
    <div style="margin:2px 0;">वय: {{.Voter.Age}}</div>
    <div style="margin:4px 0 0 0;font-size:13px;color:#555;">मतदान केंद्र: {{.Voter.PollingStationAddress}}</div>
  </div>
  {{- range $i, $m := .Members}}
  <div style="margin-bottom:12px;padding-bottom:10px;border-bottom:1px solid #eee;">
    <div style="font-weight:700;font-size:15px;margin-bottom:4px;">{{memberNo $i}}) {{$m.Name}}</div>
    <div style="margin:2px 0;">अनुक्रमांक: {{$m.SerialNumber}}</div>
    <div style="margin:2px 0;">मतदार आयडी: {{$m.VoterID}}</div>
    <div style="margin:2px 0;">बूथ क्रमांक: {{$m.BoothNumber}}</div>
    <div style="margin:2px 0;">लिंग: {{$m.Gender}}</div>
    <div style="margin:2px 0;">वय: {{$m.Age}}</div>
    <div style="margin:4px 0 0 0;font-size:13px;color:#555;">मतदान केंद्र: {{$m.PollingStationAddress}}</div>
  </div>
  {{- end}}
  <div style="margin-top:15px;padding-top:10px;border-top:2px solid #000;font-size:13px;text-align:center;color:#333;">
    मी आपला <b>{{.Candidate.Name}}</b> माझी निशाणी <b>{{.Candidate.ElectionSymbol}}</b> या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा
  </div>
{{- else}}
  <div style="text-align:center;margin-top:10px;font-size:18px;font-weight:700;color:#1e40af;margin-bottom:15px;">मतदार तपशील</div>
  <div style="margin-bottom:10px;">
    <div style="margin:6px 0;"><b>नाव:</b> {{.Voter.Name}}</div>
    <div style="margin:6px 0;"><b>मतदार आयडी:</b> {{.Voter.VoterID}}</div>
    <div style="margin:6px 0;"><b>अनुक्रमांक:</b> {{.Voter.SerialNumber}}</div>
    <div style="margin:6px 0;"><b>बूथ क्रमांक:</b> {{.Voter.BoothNumber}}</div>
    <div style="margin:6px 0;"><b>लिंग:</b> {{.Voter.Gender}}</div>
    <div style="margin:6px 0;"><b>वय:</b> {{.Voter.Age}}</div>
    <div style="margin:8px 0 0 0;font-size:13px;color:#555;"><b>मतदान केंद्र:</b> {{.Voter.PollingStationAddress}}</div>
  </div>
  <div style="margin-top:15px;padding-top:10px;border-top:2px solid #000;font-size:13px;text-align:center;color:#333;">
    मी आपला <b>{{.Candidate.Name}}</b> माझी निशाणी <b>{{.Candidate.ElectionSymbol}}</b> या चिन्हावर मतदान करून मला प्रचंड बहुमतांनी विजय करा
  </div>
  <div style="margin-top:8px;text-align:center;font-weight:700;color:#1e40af;">{{.Candidate.Name}}</div>
{{- end}}
{{template "foot" .}}{{end}}
`
