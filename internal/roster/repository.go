package roster

import "context"

// Repo 是外部名单存储：每个名单一个有序字符串列表。
// 存储本身不提供唯一性、过滤或事务，这些由 Service 保证。
type Repo interface {
	// ReadAll 返回名单全部行（保持插入顺序）
	ReadAll(ctx context.Context, c Category) ([]string, error)
	// Append 追加一行
	Append(ctx context.Context, c Category, entry string) error
	// ReplaceAll 用 entries 整体替换名单；entries 为空即清空
	ReplaceAll(ctx context.Context, c Category, entries []string) error
}

// ListNames 把名单映射到存储里的物理名称（Sheets 分页名、Redis key 后缀等）。
type ListNames map[Category]string

func (n ListNames) Name(c Category) string {
	if name, ok := n[c]; ok && name != "" {
		return name
	}
	return string(c)
}

// ListNamesFrom 读取配置中的 category -> 名称映射，忽略未知的 category。
func ListNamesFrom(m map[string]string) ListNames {
	names := make(ListNames, len(m))
	for k, v := range m {
		c, err := ParseCategory(k)
		if err != nil {
			continue
		}
		names[c] = v
	}
	return names
}
