package meta

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// node 是去掉命名空间后的最小元素树：属性、文本均已解码并去空白。
type node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*node
}

// parseTree 以严格模式解析 XML（标签不匹配即报错）：
// - 允许 HTML 实体（&nbsp; 等），只解码一次
// - 元素与属性只按 local name 匹配
func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity

	var (
		root  *node
		stack []*node
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "XML 格式错误")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				n.Attrs[a.Name.Local] = strings.TrimSpace(a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("XML 存在多个根元素")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.Errorf("多余的结束标签 </%s>", t.Name.Local)
			}
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, errors.New("XML 为空")
	}
	if len(stack) != 0 {
		return nil, errors.Errorf("元素 <%s> 未闭合", stack[len(stack)-1].Name)
	}
	return root, nil
}

// child 返回第一个同名子元素。
func (n *node) child(name string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// children 总是返回序列（0 个、1 个或多个），保持文档顺序。
func (n *node) children(name string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (n *node) text() string {
	if n == nil {
		return ""
	}
	return n.Text
}

// number 把“看起来像数字”的值显式转为 float64。
func number(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Errorf("不是有限数：%q", s)
	}
	return f, nil
}

// secondsToMs 把秒转为毫秒并四舍五入。
func secondsToMs(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}
