package metadata

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/substrate-client/command/helper"
	chainmeta "github.com/0xPolygon/substrate-client/metadata"
)

type ModuleResult struct {
	Index     uint8    `json:"index"`
	Name      string   `json:"name"`
	Calls     []string `json:"calls"`
	Events    []string `json:"events"`
	Errors    []string `json:"errors"`
	Storage   []string `json:"storage"`
	Constants []string `json:"constants"`

	pretty string
}

type MetadataResult struct {
	Version          uint8          `json:"version"`
	ExtrinsicVersion uint8          `json:"extrinsic_version"`
	SignedExtensions []string       `json:"signed_extensions"`
	Modules          []ModuleResult `json:"modules"`
}

func newModuleResult(reg *chainmeta.Registry, m *chainmeta.Module) ModuleResult {
	res := ModuleResult{
		Index:     m.Index,
		Name:      m.Name,
		Calls:     make([]string, 0, len(m.Calls)),
		Events:    make([]string, 0, len(m.Events)),
		Errors:    make([]string, 0, len(m.Errors)),
		Storage:   make([]string, 0, len(m.Storage)),
		Constants: make([]string, 0, len(m.Constants)),
		pretty:    reg.PrettyModule(m),
	}

	for _, c := range m.Calls {
		res.Calls = append(res.Calls, reg.FormatCall(c))
	}

	for _, e := range m.Events {
		res.Events = append(res.Events, reg.FormatEvent(e))
	}

	for _, e := range m.Errors {
		res.Errors = append(res.Errors, e.Name)
	}

	for _, s := range m.Storage {
		res.Storage = append(res.Storage, s.Name)
	}

	for _, c := range m.Constants {
		res.Constants = append(res.Constants, c.Name)
	}

	return res
}

func (r *MetadataResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[METADATA]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Metadata version|V%d", r.Version),
		fmt.Sprintf("Extrinsic version|%d", r.ExtrinsicVersion),
		fmt.Sprintf("Signed extensions|%d", len(r.SignedExtensions)),
		fmt.Sprintf("Modules|%d", len(r.Modules)),
	}))
	buffer.WriteString("\n")

	// a single module is shown in full
	if len(r.Modules) == 1 {
		buffer.WriteString(r.Modules[0].pretty)

		return buffer.String()
	}

	rows := make([]string, 0, len(r.Modules)+1)
	rows = append(rows, "Index|Module|Calls|Events|Errors|Storage|Constants")

	for _, m := range r.Modules {
		rows = append(rows, fmt.Sprintf("%d|%s|%d|%d|%d|%d|%d",
			m.Index, m.Name, len(m.Calls), len(m.Events), len(m.Errors), len(m.Storage), len(m.Constants)))
	}

	buffer.WriteString("\n[MODULES]\n")
	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	return buffer.String()
}
