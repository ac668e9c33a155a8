// Package schema 描述远程模型的字段结构
package schema

// Kind 字段种类，决定字段值的物化与反物化规则
type Kind int

const (
	// KindDefault 原样透传
	KindDefault Kind = iota
	// KindFloat 精确十进制
	KindFloat
	// KindMany2One 单个关联记录
	KindMany2One
	// KindOne2Many 关联记录集合，移除的成员随父记录删除
	KindOne2Many
	// KindMany2Many 关联记录集合，移除的成员仅断开关联
	KindMany2Many
	// KindDate 日期 YYYY-MM-DD
	KindDate
	// KindDateTime 时间戳 YYYY-MM-DD HH:MM:SS
	KindDateTime
)

var kindByType = map[string]Kind{
	"float":     KindFloat,
	"many2one":  KindMany2One,
	"one2many":  KindOne2Many,
	"many2many": KindMany2Many,
	"date":      KindDate,
	"datetime":  KindDateTime,
}

// KindOf 按服务端字段类型选择种类，未知类型回退为 KindDefault
func KindOf(fieldType string) Kind {
	if k, ok := kindByType[fieldType]; ok {
		return k
	}
	return KindDefault
}

// IsRelational 是否引用其他模型
func (k Kind) IsRelational() bool {
	return k == KindMany2One || k == KindOne2Many || k == KindMany2Many
}

// IsCollection 是否为关联集合
func (k Kind) IsCollection() bool {
	return k == KindOne2Many || k == KindMany2Many
}

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindMany2One:
		return "many2one"
	case KindOne2Many:
		return "one2many"
	case KindMany2Many:
		return "many2many"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return "default"
	}
}
