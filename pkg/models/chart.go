package models

// ChartType identifies a supported renderer-agnostic chart shape.
type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartPie     ChartType = "pie"
	ChartDonut   ChartType = "donut"
	ChartScatter ChartType = "scatter"
)

// Trace is one data series of a chart.
type Trace struct {
	Type ChartType     `json:"type"`
	Name string        `json:"name,omitempty"`
	X    []interface{} `json:"x"`
	Y    []interface{} `json:"y"`
}

// ChartSpec is a declarative chart description. It carries no rendering
// logic; the frontend maps traces and layout hints onto its plot library.
type ChartSpec struct {
	Traces []Trace                `json:"traces"`
	Layout map[string]interface{} `json:"layout,omitempty"`
}
