package http

// Data is the request body of /post.
type Data struct {
	String      *string `json:"string" validate:"required"`
	DefaultNone *int    `json:"default_none"`
	Lists       []int   `json:"lists" validate:"required"`
}

// EmbeddedData carries Data under the "data" key.
type EmbeddedData struct {
	Data *Data `json:"data" validate:"required"`
}

// SubDict is one element of NestedData.
type SubDict struct {
	Strings *string `json:"strings" validate:"required"`
	Integer *int    `json:"integer" validate:"required"`
}

func (s SubDict) fields() []modelField {
	return []modelField{{"strings", quoteOptional(s.Strings)}, {"integer", optionalInt(s.Integer)}}
}

// NestedData is the request body of /post/nested.
type NestedData struct {
	SubData     *SubDict  `json:"subData" validate:"required"`
	SubDataList []SubDict `json:"subDataList" validate:"required,dive"`
}

// ValidatedSubData constrains strings to 2..5 characters starting with a-b runs,
// and integer to 1 < x <= 3.
type ValidatedSubData struct {
	Strings *string `json:"strings" validate:"omitempty,min=2,max=5,pattern=[a-b]+."`
	Integer *int    `json:"integer" validate:"required,gt=1,lte=3"`
}

func (s ValidatedSubData) fields() []modelField {
	return []modelField{{"strings", quoteOptional(s.Strings)}, {"integer", optionalInt(s.Integer)}}
}

// ValidatedNestedData is the request body of POST /validation.
type ValidatedNestedData struct {
	SubData     *ValidatedSubData  `json:"subData" validate:"required"`
	SubDataList []ValidatedSubData `json:"subDataList" validate:"required,dive"`
}

// pathAndQueryParams are the inputs of GET /get/{path}.
type pathAndQueryParams struct {
	Path        string  `path:"path"`
	Query       *int    `query:"query" validate:"required"`
	DefaultNone *string `query:"default_none"`
}

// validationParams are the inputs of GET /validation/{path}.
type validationParams struct {
	String     *string `query:"string" validate:"omitempty,min=2,max=5,pattern=[a-c]+."`
	Integer    *int    `query:"integer" validate:"required,gt=1,lte=3"`
	AliasQuery string  `query:"alias-query"`
	Path       *int    `path:"path" validate:"required"`
}

// itemParams are the inputs of the response model routes.
type itemParams struct {
	Strings *string `query:"strings" validate:"required"`
	Integer *int    `query:"integer" validate:"required"`
}

// statusParams are the inputs of GET /response/status.
type statusParams struct {
	Integer *int `query:"integer" validate:"required"`
}

// countParams are the inputs of GET /background/{count}.
type countParams struct {
	Count *int `path:"count" validate:"required"`
}
