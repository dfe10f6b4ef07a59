package config

import "encoding/json"

// State はJSONフィールドの三値状態を表す。
// 通常のOption型では「フィールドが無い」と「nullが書かれている」を
// 区別できないが、設定の継承解決ではこの区別が意味を持つ:
// 無い場合は上位レベルの値を引き継ぎ、nullの場合はデフォルトへ戻す。
type State int

const (
	// Absent はフィールド自体が存在しないことを示す。
	Absent State = iota
	// Null はフィールドに明示的にnullが書かれていることを示す。
	Null
	// Value はフィールドに値が書かれていることを示す。
	Value
)

// Tri は三値状態付きのJSONフィールドを表す。
// ゼロ値はAbsentであり、デコード時にフィールドが無ければそのまま残る。
type Tri[T any] struct {
	state State
	value T
}

// Some は値を持つTriを返す。
func Some[T any](v T) Tri[T] {
	return Tri[T]{state: Value, value: v}
}

// Explicit は明示的nullを表すTriを返す。
func Explicit[T any]() Tri[T] {
	return Tri[T]{state: Null}
}

// State は三値状態を返す。
func (t Tri[T]) State() State { return t.state }

// IsValue は値が書かれている場合にtrueを返す。
func (t Tri[T]) IsValue() bool { return t.state == Value }

// IsNull は明示的nullの場合にtrueを返す。
func (t Tri[T]) IsNull() bool { return t.state == Null }

// IsAbsent はフィールドが存在しない場合にtrueを返す。
func (t Tri[T]) IsAbsent() bool { return t.state == Absent }

// Get は値と、値が存在するかどうかを返す。
func (t Tri[T]) Get() (T, bool) {
	return t.value, t.state == Value
}

// IsZero はencoding/jsonのomitzeroタグ用。Absentのフィールドは
// シリアライズ時に出力されない。
func (t Tri[T]) IsZero() bool { return t.state == Absent }

// UnmarshalJSON はnullと値を区別してデコードする。
// フィールドが存在しない場合はUnmarshalJSON自体が呼ばれないため、
// ゼロ値（Absent）のまま残る。
func (t *Tri[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Tri[T]{state: Null}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Tri[T]{state: Value, value: v}
	return nil
}

// MarshalJSON はNullをnullとして、Valueを値としてエンコードする。
// Absentはomitzeroタグにより出力されない前提。タグ無しで使われた場合は
// nullとして出力する。
func (t Tri[T]) MarshalJSON() ([]byte, error) {
	if t.state == Value {
		return json.Marshal(t.value)
	}
	return []byte("null"), nil
}
