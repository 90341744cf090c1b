package utils

import (
	"cmp"
	"sort"
)

// Has 查找序列s内是否存在元素x
//
//	@param	s	[]T	查找序列
//	@param	x	T	特定元素
//	@return	bool true if s contains x, false otherwise
func Has[T comparable](s []T, x T) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == x {
			return true
		}
	}
	return false
}

// SliceFilter 从数组spans中过滤出符合条件的元素，返回一个新的切片
//
//	@param	spans	[]T					原始切片
//	@param	filter	func(span T) bool	如果为true则包含在结果集中
func SliceFilter[T any](spans []T, filter func(span T) bool) []T {
	newSpans := make([]T, 0)
	for _, span := range spans {
		if filter(span) {
			newSpans = append(newSpans, span)
		}
	}

	return newSpans
}

// SortedKeys 获取字典的全部键, 按升序排列
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// Unique 去除重复元素, 保持原始顺序
func Unique[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	out := make([]T, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
