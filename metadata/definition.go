// Copyright (C) 2025 TRAC Platform Authors.
// See LICENSE for copying information.

package metadata

import "time"

// ObjectDefinition is the payload of one catalog object: a tagged union over
// the object kinds, discriminated by ObjectType. The store treats the payload
// as opaque apart from embedded selector extraction.
type ObjectDefinition struct {
	ObjectType ObjectType `json:"objectType"`

	Data     *DataDefinition     `json:"data,omitempty"`
	Model    *ModelDefinition    `json:"model,omitempty"`
	Flow     *FlowDefinition     `json:"flow,omitempty"`
	Job      *JobDefinition      `json:"job,omitempty"`
	File     *FileDefinition     `json:"file,omitempty"`
	Schema   *SchemaDefinition   `json:"schema,omitempty"`
	Storage  *StorageDefinition  `json:"storage,omitempty"`
	Custom   *CustomDefinition   `json:"custom,omitempty"`
	Config   *ConfigDefinition   `json:"config,omitempty"`
	Resource *ResourceDefinition `json:"resource,omitempty"`
}

// DataDefinition describes a data set: its schema, by reference or embedded,
// and the storage object holding the physical copies.
type DataDefinition struct {
	SchemaID  *TagSelector      `json:"schemaId,omitempty"`
	Schema    *SchemaDefinition `json:"schema,omitempty"`
	StorageID *TagSelector      `json:"storageId,omitempty"`
	RowCount  int64             `json:"rowCount,omitempty"`
}

// ModelParameter declares one parameter of a model or flow.
type ModelParameter struct {
	ParamType    BasicType `json:"paramType"`
	Label        string    `json:"label,omitempty"`
	DefaultValue *Value    `json:"defaultValue,omitempty"`
}

// ModelInputSchema declares one input or output of a model or flow.
type ModelInputSchema struct {
	Schema   *SchemaDefinition `json:"schema,omitempty"`
	Label    string            `json:"label,omitempty"`
	Optional bool              `json:"optional,omitempty"`
}

// ModelDefinition describes where a model lives and its calling contract.
type ModelDefinition struct {
	Language   string `json:"language"`
	Repository string `json:"repository"`
	Path       string `json:"path,omitempty"`
	EntryPoint string `json:"entryPoint"`
	Version    string `json:"version,omitempty"`

	Parameters map[string]ModelParameter   `json:"parameters,omitempty"`
	Inputs     map[string]ModelInputSchema `json:"inputs,omitempty"`
	Outputs    map[string]ModelInputSchema `json:"outputs,omitempty"`
}

// JobType discriminates job variants.
type JobType int

// Job types.
const (
	JobTypeUnset JobType = iota
	JobTypeRunModel
	JobTypeRunFlow
	JobTypeImportModel
)

var jobTypeNames = map[JobType]string{
	JobTypeUnset:       "JOB_TYPE_NOT_SET",
	JobTypeRunModel:    "RUN_MODEL",
	JobTypeRunFlow:     "RUN_FLOW",
	JobTypeImportModel: "IMPORT_MODEL",
}

// String returns the wire name of the job type.
func (t JobType) String() string {
	if name, ok := jobTypeNames[t]; ok {
		return name
	}
	return "JOB_TYPE_UNRECOGNIZED"
}

// Recognized reports whether the job type is a known enum member.
func (t JobType) Recognized() bool {
	_, ok := jobTypeNames[t]
	return ok
}

// JobDefinition records a submitted job and the objects it touches.
type JobDefinition struct {
	JobType JobType `json:"jobType"`

	RunModel    *RunModelJob    `json:"runModel,omitempty"`
	RunFlow     *RunFlowJob     `json:"runFlow,omitempty"`
	ImportModel *ImportModelJob `json:"importModel,omitempty"`
}

// RunModelJob runs one model over named inputs.
type RunModelJob struct {
	Model      *TagSelector            `json:"model"`
	Parameters map[string]Value        `json:"parameters,omitempty"`
	Inputs     map[string]*TagSelector `json:"inputs,omitempty"`
	Outputs    map[string]*TagSelector `json:"outputs,omitempty"`
}

// RunFlowJob runs a flow with models bound to its model nodes.
type RunFlowJob struct {
	Flow       *TagSelector            `json:"flow"`
	Models     map[string]*TagSelector `json:"models,omitempty"`
	Parameters map[string]Value        `json:"parameters,omitempty"`
	Inputs     map[string]*TagSelector `json:"inputs,omitempty"`
	Outputs    map[string]*TagSelector `json:"outputs,omitempty"`
}

// ImportModelJob brings a model from a repository into the catalog.
type ImportModelJob struct {
	Language   string `json:"language"`
	Repository string `json:"repository"`
	Path       string `json:"path,omitempty"`
	EntryPoint string `json:"entryPoint"`
	Version    string `json:"version,omitempty"`
}

// FileDefinition describes a single stored file.
type FileDefinition struct {
	Name      string       `json:"name"`
	Extension string       `json:"extension,omitempty"`
	MimeType  string       `json:"mimeType"`
	Size      int64        `json:"size"`
	StorageID *TagSelector `json:"storageId,omitempty"`
	DataItem  string       `json:"dataItem,omitempty"`
}

// IncarnationStatus tracks whether a stored incarnation still has data.
type IncarnationStatus int

// Incarnation statuses.
const (
	IncarnationUnset IncarnationStatus = iota
	IncarnationAvailable
	IncarnationExpunged
)

var incarnationStatusNames = map[IncarnationStatus]string{
	IncarnationUnset:     "INCARNATION_STATUS_NOT_SET",
	IncarnationAvailable: "INCARNATION_AVAILABLE",
	IncarnationExpunged:  "INCARNATION_EXPUNGED",
}

// String returns the wire name of the incarnation status.
func (s IncarnationStatus) String() string {
	if name, ok := incarnationStatusNames[s]; ok {
		return name
	}
	return "INCARNATION_STATUS_UNRECOGNIZED"
}

// Recognized reports whether the status is a known enum member.
func (s IncarnationStatus) Recognized() bool {
	_, ok := incarnationStatusNames[s]
	return ok
}

// CopyStatus tracks whether a physical copy still has data.
type CopyStatus int

// Copy statuses.
const (
	CopyUnset CopyStatus = iota
	CopyAvailable
	CopyExpunged
)

var copyStatusNames = map[CopyStatus]string{
	CopyUnset:     "COPY_STATUS_NOT_SET",
	CopyAvailable: "COPY_AVAILABLE",
	CopyExpunged:  "COPY_EXPUNGED",
}

// String returns the wire name of the copy status.
func (s CopyStatus) String() string {
	if name, ok := copyStatusNames[s]; ok {
		return name
	}
	return "COPY_STATUS_UNRECOGNIZED"
}

// Recognized reports whether the status is a known enum member.
func (s CopyStatus) Recognized() bool {
	_, ok := copyStatusNames[s]
	return ok
}

// StorageDefinition records the physical storage of data items.
type StorageDefinition struct {
	DataItems map[string]StorageItem `json:"dataItems"`
}

// StorageItem is the incarnation history of one data item.
type StorageItem struct {
	Incarnations []StorageIncarnation `json:"incarnations"`
}

// StorageIncarnation is one generation of a data item with its copies.
type StorageIncarnation struct {
	IncarnationIndex     int               `json:"incarnationIndex"`
	IncarnationTimestamp time.Time         `json:"incarnationTimestamp"`
	Status               IncarnationStatus `json:"status"`
	Copies               []StorageCopy     `json:"copies"`
}

// StorageCopy is one physical copy in one storage backend.
type StorageCopy struct {
	StorageKey    string     `json:"storageKey"`
	StoragePath   string     `json:"storagePath"`
	StorageFormat string     `json:"storageFormat"`
	Status        CopyStatus `json:"status"`
	CopyTimestamp time.Time  `json:"copyTimestamp"`
}

// CustomDefinition is an opaque application-defined payload.
type CustomDefinition struct {
	SchemaType    string `json:"schemaType"`
	SchemaVersion int    `json:"schemaVersion"`
	Data          []byte `json:"data"`
}

// ConfigDefinition is a versioned configuration entry.
type ConfigDefinition struct {
	ConfigType string            `json:"configType"`
	Properties map[string]string `json:"properties,omitempty"`
}

// ResourceDefinition describes a platform resource such as a model repository
// or a storage bucket. Secrets hold secret store aliases, never values.
type ResourceDefinition struct {
	ResourceType     string            `json:"resourceType"`
	Protocol         string            `json:"protocol"`
	PublicProperties map[string]string `json:"publicProperties,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	Secrets          map[string]string `json:"secrets,omitempty"`
}

// definitionReferences extracts the embedded selectors of each object kind.
// Extraction is a per-variant table rather than a recursive walk, so adding a
// selector to a definition means adding it here as well.
var definitionReferences = map[ObjectType]func(*ObjectDefinition) []*TagSelector{
	ObjectTypeData: func(def *ObjectDefinition) []*TagSelector {
		if def.Data == nil {
			return nil
		}
		return nonNilSelectors(def.Data.SchemaID, def.Data.StorageID)
	},
	ObjectTypeFile: func(def *ObjectDefinition) []*TagSelector {
		if def.File == nil {
			return nil
		}
		return nonNilSelectors(def.File.StorageID)
	},
	ObjectTypeJob: func(def *ObjectDefinition) []*TagSelector {
		if def.Job == nil {
			return nil
		}
		var refs []*TagSelector
		if job := def.Job.RunModel; job != nil {
			refs = append(refs, nonNilSelectors(job.Model)...)
			refs = append(refs, selectorMapValues(job.Inputs)...)
			refs = append(refs, selectorMapValues(job.Outputs)...)
		}
		if job := def.Job.RunFlow; job != nil {
			refs = append(refs, nonNilSelectors(job.Flow)...)
			refs = append(refs, selectorMapValues(job.Models)...)
			refs = append(refs, selectorMapValues(job.Inputs)...)
			refs = append(refs, selectorMapValues(job.Outputs)...)
		}
		return refs
	},
}

// EmbeddedSelectors returns every tag selector embedded in the definition.
// Kinds with no entry in the extraction table embed no references.
func (def *ObjectDefinition) EmbeddedSelectors() []*TagSelector {
	extract, ok := definitionReferences[def.ObjectType]
	if !ok {
		return nil
	}
	return extract(def)
}

func nonNilSelectors(selectors ...*TagSelector) []*TagSelector {
	var refs []*TagSelector
	for _, sel := range selectors {
		if sel != nil {
			refs = append(refs, sel)
		}
	}
	return refs
}

func selectorMapValues(selectors map[string]*TagSelector) []*TagSelector {
	var refs []*TagSelector
	for _, name := range sortedKeys(selectors) {
		if sel := selectors[name]; sel != nil {
			refs = append(refs, sel)
		}
	}
	return refs
}
