// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseValues_String(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TypedValue
	}{
		{"single token", "admin", []TypedValue{Str("admin")}},
		{"comma list", "admin,user,guest", []TypedValue{Str("admin"), Str("user"), Str("guest")}},
		{"whitespace trimmed", " admin , user ", []TypedValue{Str("admin"), Str("user")}},
		{"empty tokens dropped", "admin,,user,", []TypedValue{Str("admin"), Str("user")}},
		{"newlines act as whitespace", "admin,\nuser,\nguest", []TypedValue{Str("admin"), Str("user"), Str("guest")}},
		{"duplicates collapse", "admin,user,admin", []TypedValue{Str("admin"), Str("user")}},
		{"empty input", "", nil},
		{"only separators", " , ,, ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValues(DataTypeString, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValues_Number(t *testing.T) {
	got, err := ParseValues(DataTypeNumber, "1, 2.5, -3, 1e3")
	require.NoError(t, err)
	assert.Equal(t, []TypedValue{Num(1), Num(2.5), Num(-3), Num(1000)}, got)
}

func TestParseValues_NumberBadToken(t *testing.T) {
	got, err := ParseValues(DataTypeNumber, "1, 2, abc")
	require.Error(t, err)
	assert.Nil(t, got, "a bad token discards the whole set")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "abc", parseErr.Token)
	assert.Equal(t, 3, parseErr.Position)
	assert.Zero(t, parseErr.Line)
}

func TestParseValues_NumberRejectsNonFinite(t *testing.T) {
	for _, tok := range []string{"NaN", "Inf", "-Inf", "+inf"} {
		t.Run(tok, func(t *testing.T) {
			_, err := ParseValues(DataTypeNumber, tok)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tok, parseErr.Token)
			assert.Contains(t, parseErr.Reason, "finite")
		})
	}
}

func TestParseValues_Boolean(t *testing.T) {
	got, err := ParseValues(DataTypeBoolean, "true, FALSE, True")
	require.NoError(t, err)
	assert.Equal(t, []TypedValue{Bool(true), Bool(false)}, got)

	_, err = ParseValues(DataTypeBoolean, "true, yes")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "yes", parseErr.Token)
	assert.Equal(t, 2, parseErr.Position)
}

func TestParseValues_Date(t *testing.T) {
	got, err := ParseValues(DataTypeDate, "2026-01-15, 2026-02-01")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Date(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)), got[0])

	tests := []struct {
		name  string
		input string
	}{
		{"wrong order", "15-01-2026"},
		{"month out of range", "2026-13-01"},
		{"time component", "2026-01-15T10:00:00Z"},
		{"free text", "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseValues(DataTypeDate, tt.input)
			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, parseErr.Reason, "YYYY-MM-DD")
		})
	}
}

func TestParseValues_Array(t *testing.T) {
	t.Run("single literal", func(t *testing.T) {
		got, err := ParseValues(DataTypeArray, `[1, 2, "a"]`)
		require.NoError(t, err)
		assert.Equal(t, []TypedValue{Num(1), Num(2), Str("a")}, got)
	})

	t.Run("multiple lines flatten in order", func(t *testing.T) {
		got, err := ParseValues(DataTypeArray, "[1, 2]\n[3]\n[\"x\"]")
		require.NoError(t, err)
		assert.Equal(t, []TypedValue{Num(1), Num(2), Num(3), Str("x")}, got)
	})

	t.Run("blank lines skipped", func(t *testing.T) {
		got, err := ParseValues(DataTypeArray, "\n[1]\n\n[2]\n")
		require.NoError(t, err)
		assert.Equal(t, []TypedValue{Num(1), Num(2)}, got)
	})

	t.Run("nested members survive", func(t *testing.T) {
		got, err := ParseValues(DataTypeArray, `[[1, 2], {"k": "v"}]`)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Arr(Num(1), Num(2)), got[0])
		assert.Equal(t, Obj(map[string]TypedValue{"k": Str("v")}), got[1])
	})

	t.Run("duplicates across lines collapse", func(t *testing.T) {
		got, err := ParseValues(DataTypeArray, "[1, 2]\n[2, 3]")
		require.NoError(t, err)
		assert.Equal(t, []TypedValue{Num(1), Num(2), Num(3)}, got)
	})

	t.Run("bad line reports its number", func(t *testing.T) {
		_, err := ParseValues(DataTypeArray, "[1]\n[2\n[3]")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 2, parseErr.Line)
		assert.Equal(t, "[2", parseErr.Token)
		assert.Contains(t, parseErr.Reason, "not valid JSON")
	})

	t.Run("non-array line aborts", func(t *testing.T) {
		_, err := ParseValues(DataTypeArray, "[1]\n{\"k\": 1}")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 2, parseErr.Line)
		assert.Contains(t, parseErr.Reason, "not a JSON array literal")
	})

	t.Run("null line aborts", func(t *testing.T) {
		_, err := ParseValues(DataTypeArray, "null")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 1, parseErr.Line)
		assert.Contains(t, parseErr.Reason, "null")
	})

	t.Run("null member aborts", func(t *testing.T) {
		_, err := ParseValues(DataTypeArray, "[1, null]")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 1, parseErr.Line)
		assert.Contains(t, parseErr.Reason, "null")
	})
}

func TestParseValues_Object(t *testing.T) {
	t.Run("one object per line", func(t *testing.T) {
		got, err := ParseValues(DataTypeObject, "{\"env\": \"prod\"}\n{\"env\": \"dev\", \"tier\": 2}")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Obj(map[string]TypedValue{"env": Str("prod")}), got[0])
		assert.Equal(t, Obj(map[string]TypedValue{"env": Str("dev"), "tier": Num(2)}), got[1])
	})

	t.Run("array line aborts", func(t *testing.T) {
		_, err := ParseValues(DataTypeObject, "{\"a\": 1}\n[1, 2]")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 2, parseErr.Line)
		assert.Contains(t, parseErr.Reason, "not a JSON object literal")
	})

	t.Run("scalar line aborts", func(t *testing.T) {
		_, err := ParseValues(DataTypeObject, "42")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 1, parseErr.Line)
	})

	t.Run("duplicate objects collapse", func(t *testing.T) {
		got, err := ParseValues(DataTypeObject, "{\"a\": 1}\n{\"a\": 1}")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestFormatValues(t *testing.T) {
	tests := []struct {
		name   string
		dt     DataType
		values []TypedValue
		want   string
	}{
		{"strings", DataTypeString, []TypedValue{Str("admin"), Str("user")}, "admin, user"},
		{"numbers", DataTypeNumber, []TypedValue{Num(1), Num(2.5)}, "1, 2.5"},
		{"booleans", DataTypeBoolean, []TypedValue{Bool(true), Bool(false)}, "true, false"},
		{"dates", DataTypeDate, []TypedValue{Date(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))}, "2026-01-15"},
		{"array", DataTypeArray, []TypedValue{Num(1), Str("a")}, `[1,"a"]`},
		{"objects", DataTypeObject, []TypedValue{
			Obj(map[string]TypedValue{"a": Num(1)}),
			Obj(map[string]TypedValue{"b": Bool(true)}),
		}, "{\"a\":1}\n{\"b\":true}"},
		{"empty set", DataTypeString, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatValues(tt.dt, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValues_KindMismatch(t *testing.T) {
	_, err := FormatValues(DataTypeNumber, []TypedValue{Num(1), Str("nope")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value 2")
}

func TestParseFormatRoundTrip(t *testing.T) {
	dataTypes := []DataType{
		DataTypeString, DataTypeNumber, DataTypeBoolean,
		DataTypeDate, DataTypeArray, DataTypeObject,
	}
	for _, dt := range dataTypes {
		t.Run(dt.String(), func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				values := rapid.SliceOfN(valueGen(dt), 0, 8).Draw(rt, "values")
				text, err := FormatValues(dt, values)
				require.NoError(rt, err)
				reparsed, err := ParseValues(dt, text)
				require.NoError(rt, err, "serialized form must parse: %q", text)

				want := dedupeValues(values)
				if len(want) == 0 {
					assert.Empty(rt, reparsed)
					return
				}
				require.Len(rt, reparsed, len(want))
				for i := range want {
					assert.True(rt, want[i].Equal(reparsed[i]),
						"value %d: want %s, got %s", i, want[i], reparsed[i])
				}
			})
		})
	}
}

// valueGen draws values that survive the text round trip for the given
// data type: scalar tokens avoid commas and surrounding whitespace,
// collection members stay within JSON-reachable kinds.
func valueGen(dt DataType) *rapid.Generator[TypedValue] {
	switch dt {
	case DataTypeString:
		return rapid.Custom(func(rt *rapid.T) TypedValue {
			return Str(rapid.StringMatching(`[a-z][a-z0-9_.:-]{0,15}`).Draw(rt, "str"))
		})
	case DataTypeNumber:
		return rapid.Custom(func(rt *rapid.T) TypedValue {
			return Num(rapid.Float64().Draw(rt, "num"))
		})
	case DataTypeBoolean:
		return rapid.Custom(func(rt *rapid.T) TypedValue {
			return Bool(rapid.Bool().Draw(rt, "bool"))
		})
	case DataTypeDate:
		return rapid.Custom(func(rt *rapid.T) TypedValue {
			y := rapid.IntRange(1, 9999).Draw(rt, "year")
			m := time.Month(rapid.IntRange(1, 12).Draw(rt, "month"))
			d := rapid.IntRange(1, 28).Draw(rt, "day")
			return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		})
	case DataTypeArray:
		return jsonValueGen(2)
	case DataTypeObject:
		return rapid.Custom(func(rt *rapid.T) TypedValue {
			return Obj(rapid.MapOfN(
				rapid.StringMatching(`[a-z][a-z0-9_]{0,7}`),
				jsonValueGen(1),
				0, 4,
			).Draw(rt, "obj"))
		})
	}
	panic(fmt.Sprintf("no generator for %s", dt))
}

// jsonValueGen draws arbitrary JSON-representable values with bounded
// nesting depth.
func jsonValueGen(depth int) *rapid.Generator[TypedValue] {
	return rapid.Custom(func(rt *rapid.T) TypedValue {
		maxKind := 2
		if depth > 0 {
			maxKind = 4
		}
		switch rapid.IntRange(0, maxKind).Draw(rt, "kind") {
		case 0:
			return Str(rapid.StringMatching(`[a-z0-9]{0,12}`).Draw(rt, "str"))
		case 1:
			return Num(rapid.Float64().Draw(rt, "num"))
		case 2:
			return Bool(rapid.Bool().Draw(rt, "bool"))
		case 3:
			members := rapid.SliceOfN(jsonValueGen(depth-1), 0, 3).Draw(rt, "members")
			return TypedValue{Kind: KindArray, Arr: members}
		default:
			fields := rapid.MapOfN(
				rapid.StringMatching(`[a-z][a-z0-9]{0,5}`),
				jsonValueGen(depth-1),
				0, 3,
			).Draw(rt, "fields")
			return TypedValue{Kind: KindObject, Obj: fields}
		}
	})
}
