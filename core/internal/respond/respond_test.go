package respond

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestContentRangeHeader_InsertRangeAlwaysStar(t *testing.T) {
	got := contentRangeHeader(MethodPost, NodeInsert, 0, 5, int64p(5))
	require.Equal(t, "*/5", got)
}

func TestContentRangeHeader_DeleteOffsetByTopLevelOffset(t *testing.T) {
	got := contentRangeHeader(MethodDelete, NodeDelete, 10, 3, int64p(3))
	require.Equal(t, "1-12/3", got)
}

func TestContentRangeHeader_GeneralCase(t *testing.T) {
	got := contentRangeHeader(MethodGet, NodeOther, 0, 2, int64p(10))
	require.Equal(t, "0-1/10", got)
}

func TestContentRangeHeader_UnknownTotal(t *testing.T) {
	got := contentRangeHeader(MethodGet, NodeOther, 0, 2, nil)
	require.Equal(t, "0-1/*", got)
}

func TestStatusFor_InsertIs201(t *testing.T) {
	require.Equal(t, 201, statusFor(MethodPost, NodeInsert, 0, 0, 1, int64p(1), RepresentationMinimal))
}

func TestStatusFor_DeleteDefaultsTo204(t *testing.T) {
	require.Equal(t, 204, statusFor(MethodDelete, NodeDelete, 0, 0, 1, int64p(1), RepresentationMinimal))
}

func TestStatusFor_DeleteFullRepresentationIs200(t *testing.T) {
	require.Equal(t, 200, statusFor(MethodDelete, NodeDelete, 0, 0, 1, int64p(1), RepresentationFull))
}

func TestStatusFor_UpdateZeroRowsWithColumnsIs404(t *testing.T) {
	require.Equal(t, 404, statusFor(MethodPatch, NodeUpdate, 1, 0, 0, int64p(0), RepresentationMinimal))
}

func TestApplyGucHeaders_ValidArray(t *testing.T) {
	headers, err := ApplyGucHeaders(`[{"X-One":"a"},{"X-Two":"b"}]`)
	require.NoError(t, err)
	require.Len(t, headers, 2)
}

func TestApplyGucHeaders_RejectsMultiKeyValueMismatch(t *testing.T) {
	_, err := ApplyGucHeaders(`[{"X-One": 5}]`)
	require.Error(t, err)
}

func TestApplyGucHeaders_RejectsGenuineMultiKeyObject(t *testing.T) {
	_, err := ApplyGucHeaders(`[{"X-One":"a","X-Two":"b"}]`)
	require.Error(t, err)
}

func TestApplyGucHeaders_RejectsNonArray(t *testing.T) {
	_, err := ApplyGucHeaders(`{"X-One":"a"}`)
	require.Error(t, err)
}

func TestSelectSchema_SingleSchemaSkipsNegotiation(t *testing.T) {
	got, err := SelectSchema([]string{"api"}, MethodPost, "other", "other")
	require.NoError(t, err)
	require.Equal(t, "api", got)
}

func TestSelectSchema_MutatingPrefersContentProfile(t *testing.T) {
	got, err := SelectSchema([]string{"api", "v2"}, MethodPost, "api", "v2")
	require.NoError(t, err)
	require.Equal(t, "v2", got)
}

func TestSelectSchema_ReadPrefersAcceptProfile(t *testing.T) {
	got, err := SelectSchema([]string{"api", "v2"}, MethodGet, "v2", "")
	require.NoError(t, err)
	require.Equal(t, "v2", got)
}

func TestSelectSchema_UnlistedProfileRejected(t *testing.T) {
	_, err := SelectSchema([]string{"api", "v2"}, MethodGet, "v3", "")
	require.Error(t, err)
}

func TestFinalize_AppliesPreferenceAppliedHeader(t *testing.T) {
	out, err := Finalize(MethodPost, NodeInsert, 0, 0, QueryResult{PageTotal: 1, TotalResultSet: int64p(1), Body: "[]", ConstraintsSatisfied: true}, ResolutionMergeDuplicates, RepresentationFull, "Content-Profile", "api", false)
	require.NoError(t, err)
	require.Equal(t, 201, out.Status)
	found := false
	for _, h := range out.Headers {
		if h[0] == "Preference-Applied" && h[1] == "resolution=merge-duplicates" {
			found = true
		}
	}
	require.True(t, found)
}

func TestFinalize_ResponseStatusGucOverrides(t *testing.T) {
	status := "422"
	out, err := Finalize(MethodGet, NodeOther, 0, 0, QueryResult{PageTotal: 1, TotalResultSet: int64p(1), Body: "[]", ResponseStatus: &status}, ResolutionNone, RepresentationNone, "Content-Profile", "api", false)
	require.NoError(t, err)
	require.Equal(t, 422, out.Status)
}
