package script

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/recera/lowcode/pkg/model"
)

func globals(t *testing.T, src string) model.Globals {
	t.Helper()
	var g model.Globals
	if err := json.Unmarshal([]byte(src), &g); err != nil {
		t.Fatalf("globals: %v", err)
	}
	return g
}

func keyed(name, key string) *model.Node {
	n := model.NewNode(name)
	n.Key, n.ID = key, key
	return n
}

const pageGlobals = `{
	"import": [
		{"from": "vue", "names": [{"name": "watch"}]},
		{"from": "axios", "default": "axios"}
	],
	"variable": {
		"count": {"type": "number", "value": 1},
		"double": {"type": "computed", "value": {"code": "return count.value * 2", "codeVar": []}},
		"user": {"type": "object", "value": {"name": "ada"}},
		"userName": {"type": "variable", "value": ["user", "name"]},
		"greet": {"type": "function", "value": {"code": "return 'hi ' + who", "codeVar": ["who"]}}
	},
	"lifecycle": {
		"mounted": {"type": "function", "value": {"code": "console.log('up')", "codeVar": []}},
		"created": {"type": "function", "value": {"code": "init()", "codeVar": []}},
		"unmounted": {"type": "function", "value": {"code": "", "codeVar": []}}
	}
}`

func clickTree() []*model.Node {
	a := keyed("button", "k1")
	a.On.Set("click", model.Func("count.value++"))
	b := keyed("button", "k2")
	b.On.Set("click", model.Func("count.value--"))
	b.On.Set("update:modelValue", model.Func("v = $event", "$event"))
	a.Slots.Set("default", &model.Slot{Children: []*model.Node{b}})
	return []*model.Node{a}
}

func TestComposition(t *testing.T) {
	out, err := Generate(clickTree(), globals(t, pageGlobals), Composition)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"import { ref, computed, onMounted, watch } from 'vue'",
		"import axios from 'axios'",
		"",
		"const count = ref(1)",
		"const double = computed(() => {",
		"  return count.value * 2",
		"})",
		"const user = ref({ name: 'ada' })",
		"const userName = computed(() => user.value.name)",
		"function greet(who) {",
		"  return 'hi ' + who",
		"}",
		"",
		"onMounted(() => {",
		"  console.log('up')",
		"})",
		";(() => {",
		"  init()",
		"})()",
		"",
		"function k1_click() {",
		"  count.value++",
		"}",
		"function k2_click() {",
		"  count.value--",
		"}",
		"function k2_update_modelValue($event) {",
		"  v = $event",
		"}",
		"",
	}, "\n")
	if out != want {
		t.Errorf("Unexpected composition output:\n%s\nwant:\n%s", out, want)
	}
}

func TestOptions(t *testing.T) {
	g := globals(t, pageGlobals)
	g.Export.Set("version", model.String("1.0"))
	out, err := Generate(clickTree(), g, Options)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"import { watch } from 'vue'",
		"import axios from 'axios'",
		"",
		"export const version = '1.0'",
		"",
		"export default {",
		"  data() {",
		"    return {",
		"      count: 1,",
		"      user: { name: 'ada' },",
		"    }",
		"  },",
		"  computed: {",
		"    double() {",
		"      return count.value * 2",
		"    },",
		"    userName() {",
		"      return this.user.name",
		"    },",
		"  },",
		"  methods: {",
		"    greet(who) {",
		"      return 'hi ' + who",
		"    },",
		"    k1_click() {",
		"      count.value++",
		"    },",
		"    k2_click() {",
		"      count.value--",
		"    },",
		"    k2_update_modelValue($event) {",
		"      v = $event",
		"    },",
		"  },",
		"  mounted() {",
		"    console.log('up')",
		"  },",
		"  created() {",
		"    init()",
		"  },",
		"}",
		"",
	}, "\n")
	if out != want {
		t.Errorf("Unexpected options output:\n%s\nwant:\n%s", out, want)
	}
}

func TestHandlerKeysUnique(t *testing.T) {
	var tree []*model.Node
	for _, key := range []string{"k1", "k2", "k3"} {
		n := keyed("ElInput", key)
		n.On.Set("click", model.Func("go()"))
		n.On.Set("update:modelValue", model.Func("set($event)", "$event"))
		n.NativeOn.Set("click", model.Func("go()"))
		n.Attrs.Set("formatter", model.Func("return v", "v"))
		tree = append(tree, n)
	}

	seen := map[string]bool{}
	for _, h := range Handlers(tree, nil) {
		if seen[h.Name] {
			t.Errorf("Duplicate handler %s", h.Name)
		}
		seen[h.Name] = true
	}
	if len(seen) != 12 {
		t.Errorf("Expected 12 handlers, got %d", len(seen))
	}

	for _, style := range []Style{Composition, Options} {
		if _, err := Generate(tree, model.Globals{}, style); err != nil {
			t.Errorf("%s: %v", style, err)
		}
	}
}

func TestHandlerCollisionsAreNumbered(t *testing.T) {
	a := keyed("div", "k1")
	a.On.Set("item:select", model.Func("a()"))
	a.On.Set("item-select", model.Func("b()"))
	a.On.Set("click", model.Func("c()"))
	b := keyed("div", "k2")
	b.On.Set("click", model.Func("d()"))

	g := globals(t, `{"variable":{"k1_click":{"type":"number","value":0}}}`)
	out, err := Generate([]*model.Node{a, b}, g, Composition)
	if err != nil {
		t.Fatalf("Expected collisions to be resolved, got %v", err)
	}
	for _, want := range []string{
		"function k1_item_select() {\n  a()\n}",
		"function k1_item_select_2() {\n  b()\n}",
		"const k1_click = ref(0)",
		"function k1_click_2() {\n  c()\n}",
		"function k2_click() {\n  d()\n}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestDuplicateIdentifier(t *testing.T) {
	g := globals(t, `{"import":[{"from":"x","default":"count"}],"variable":{"count":{"type":"number","value":0}}}`)
	_, err := Generate(nil, g, Options)
	if !errors.Is(err, ErrDuplicateIdentifier) {
		t.Errorf("Expected import/variable clash to be reported, got %v", err)
	}
}

func TestComputedAndArrowHandlers(t *testing.T) {
	n := keyed("span", "k1")
	n.Attrs.Set("title", model.Computed("return 'x'"))
	click := model.Func("await save()")
	click.Func.FunctionMode = model.ModeAsyncFunction
	click.Func.IsArrow = true
	n.On.Set("click", click)

	out, err := Generate([]*model.Node{n}, model.Globals{}, Composition)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"import { computed } from 'vue'\n",
		"const k1_prop_title = computed(() => {\n  return 'x'\n})\n",
		"const k1_click = async () => {\n  await save()\n}\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestParseStyleAndHookName(t *testing.T) {
	if s, err := ParseStyle(""); err != nil || s != Composition {
		t.Errorf("Expected default composition, got %q %v", s, err)
	}
	if _, err := ParseStyle("classic"); !errors.Is(err, ErrUnknownStyle) {
		t.Errorf("Expected ErrUnknownStyle, got %v", err)
	}
	if HookName("onMounted") != "mounted" || HookName("mounted") != "mounted" || HookName("onward") != "onward" {
		t.Error("Unexpected hook normalization")
	}
}
