package value

// FilterKind discriminates the Filter variants from spec.md §3.
type FilterKind int

const (
	FilterOp FilterKind = iota
	FilterIn
	FilterIs
	FilterFts
	FilterCol
	FilterEnv
)

// EnvVar names a request-environment lookup (role, header, cookie, GET
// param, JWT claim) used by the `Env` filter variant (spec.md §9).
type EnvVar struct {
	Source string // "header" | "cookie" | "get" | "claim" | "role"
	Name   string
}

// Filter is a tagged union over the comparison forms PostgREST accepts
// as a query-string filter value, matching subzero's `Filter` enum
// (src/api.rs) one-to-one.
type Filter struct {
	Kind FilterKind

	// FilterOp
	Op  string
	Val SingleVal

	// FilterIn
	List ListVal

	// FilterIs
	Tri Trilean

	// FilterFts
	FtsOp  string
	FtsLang *SingleVal // optional

	// FilterCol
	ColQi    Qi
	ColField Field

	// FilterEnv
	Env EnvVar
}

func NewOpFilter(op string, val SingleVal) Filter {
	return Filter{Kind: FilterOp, Op: op, Val: val}
}

func NewInFilter(list ListVal) Filter {
	return Filter{Kind: FilterIn, List: list}
}

func NewIsFilter(t Trilean) Filter {
	return Filter{Kind: FilterIs, Tri: t}
}

func NewFtsFilter(op string, lang *SingleVal, val SingleVal) Filter {
	return Filter{Kind: FilterFts, FtsOp: op, FtsLang: lang, Val: val}
}

func NewColFilter(qi Qi, f Field) Filter {
	return Filter{Kind: FilterCol, ColQi: qi, ColField: f}
}

func NewEnvFilter(op string, env EnvVar) Filter {
	return Filter{Kind: FilterEnv, Op: op, Env: env}
}
