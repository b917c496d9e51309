package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File описывает YAML-файл каталога
type File struct {
	Items               []Item                `yaml:"items"`
	Blueprints          []Blueprint           `yaml:"blueprints"`
	Modules             []Module              `yaml:"modules"`
	MessageBodies       []MessageBody         `yaml:"message_bodies"`
	MessageTemplates    []MessageTemplate     `yaml:"message_templates"`
	Questions           []Question            `yaml:"questions"`
	Networkers          []Networker           `yaml:"networkers"`
	NetworkerReplies    []NetworkerReply      `yaml:"networker_replies"`
	NetworkerConditions []FriendshipCondition `yaml:"networker_conditions"`
}

// Load читает и проверяет каталог из файла
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse разбирает YAML и строит каталог
func Parse(raw []byte) (*Catalog, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	return New(f)
}

// New строит каталог из уже разобранного файла. Любое нарушение ссылочной целостности
// приводит к ошибке: после старта каталог не меняется, поэтому проверки выполняются один раз.
func New(f File) (*Catalog, error) {
	c := &Catalog{
		items:      make(map[int64]Item, len(f.Items)),
		blueprints: make(map[int64]Blueprint, len(f.Blueprints)),
		modules:    make(map[int64]*Module, len(f.Modules)),
		bodies:     make(map[int64]MessageBody, len(f.MessageBodies)),
		templates:  make(map[int64]MessageTemplate, len(f.MessageTemplates)),
		questions:  make(map[int64]Question, len(f.Questions)),
		answers:    make(map[int64]int64),
		conditions: make(map[string]FriendshipCondition, len(f.NetworkerConditions)),
		replies:    f.NetworkerReplies,
		networkers: f.Networkers,
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for _, it := range f.Items {
		if _, dup := c.items[it.ID]; dup {
			fail("item %d: duplicate id", it.ID)
			continue
		}
		switch it.Type {
		case ItemTypeItem, ItemTypeBadge, ItemTypeBlueprint, ItemTypeMasterpiece, ItemTypeModule,
			ItemTypeMovie, ItemTypeSkin, ItemTypeLoop, ItemTypeSticker:
		default:
			fail("item %d: unknown type %q", it.ID, it.Type)
		}
		c.items[it.ID] = it
	}

	checkStacks := func(owner string, stacks []Stack) {
		for _, s := range stacks {
			if _, ok := c.items[s.Item]; !ok {
				fail("%s: unknown item %d", owner, s.Item)
			}
			if s.Qty <= 0 {
				fail("%s: item %d has non-positive qty %d", owner, s.Item, s.Qty)
			}
		}
	}

	for _, bp := range f.Blueprints {
		owner := fmt.Sprintf("blueprint %d", bp.Item)
		if !c.IsType(bp.Item, ItemTypeBlueprint) {
			fail("%s: item is not a blueprint", owner)
		}
		build, ok := c.items[bp.Build]
		if !ok {
			fail("%s: unknown build item %d", owner, bp.Build)
		} else if !buildTypes[build.Type] {
			fail("%s: build item %d has type %s", owner, bp.Build, build.Type)
		}
		seen := make(map[int64]bool, len(bp.Requirements))
		for _, r := range bp.Requirements {
			if seen[r.Item] {
				fail("%s: duplicate requirement %d", owner, r.Item)
			}
			seen[r.Item] = true
		}
		checkStacks(owner, bp.Requirements)
		c.blueprints[bp.Item] = bp
	}

	for i := range f.Modules {
		m := f.Modules[i]
		owner := fmt.Sprintf("module %d", m.Item)
		if !c.IsType(m.Item, ItemTypeModule) {
			fail("%s: item is not a module", owner)
		}
		if m.EditorType == "" {
			m.EditorType = EditorSimple
		}
		if !editorTypes[m.EditorType] {
			fail("%s: unknown editor type %q", owner, m.EditorType)
		}
		switch m.ClickOutcome {
		case "":
			m.ClickOutcome = OutcomeNumClicks
		case OutcomeNumClicks, OutcomeProbability, OutcomeBattle, OutcomeArcade:
		default:
			fail("%s: unknown click outcome %q", owner, m.ClickOutcome)
		}
		if h := m.Harvest; h != nil {
			if _, ok := c.items[h.YieldItem]; !ok {
				fail("%s: unknown yield item %d", owner, h.YieldItem)
			}
			if h.MaxYield < 0 || h.YieldPerDay < 0 || h.ClicksPerYield < 0 {
				fail("%s: negative harvest parameters", owner)
			}
		}
		checkStacks(owner+" setup", m.SetupCosts)
		checkStacks(owner+" execution", m.ExecutionCosts)
		total := 0
		for _, gy := range m.GuestYields {
			if _, ok := c.items[gy.Item]; !ok {
				fail("%s: unknown guest yield item %d", owner, gy.Item)
			}
			if gy.Probability < 0 || gy.Probability > 100 {
				fail("%s: guest yield probability %d out of range", owner, gy.Probability)
			}
			total += gy.Probability
		}
		if len(m.GuestYields) > 1 && total != 100 {
			fail("%s: guest yield probabilities sum to %d, want 100", owner, total)
		}
		if _, dup := c.modules[m.Item]; dup {
			fail("%s: duplicate definition", owner)
		}
		c.modules[m.Item] = &m
	}

	for _, b := range f.MessageBodies {
		if _, dup := c.bodies[b.ID]; dup {
			fail("body %d: duplicate id", b.ID)
		}
		c.bodies[b.ID] = b
	}
	for _, b := range f.MessageBodies {
		for _, r := range b.EasyReplies {
			if _, ok := c.bodies[r]; !ok {
				fail("body %d: unknown easy reply %d", b.ID, r)
			}
		}
	}

	for _, t := range f.MessageTemplates {
		owner := fmt.Sprintf("template %d", t.ID)
		if _, ok := c.bodies[t.Body]; !ok {
			fail("%s: unknown body %d", owner, t.Body)
		}
		checkStacks(owner, t.Attachments)
		c.templates[t.ID] = t
	}

	for i := range f.Modules {
		for _, mm := range f.Modules[i].Messages {
			if _, ok := c.templates[mm.Template]; !ok {
				fail("module %d: unknown message template %d", f.Modules[i].Item, mm.Template)
			}
		}
	}

	for _, q := range f.Questions {
		if _, dup := c.questions[q.ID]; dup {
			fail("question %d: duplicate id", q.ID)
		}
		for _, a := range q.Answers {
			if prev, dup := c.answers[a.ID]; dup {
				fail("answer %d: shared by questions %d and %d", a.ID, prev, q.ID)
			}
			c.answers[a.ID] = q.ID
		}
		c.questions[q.ID] = q
	}
	if n := len(c.MandatoryQuestions()); n > 6 {
		fail("questions: %d mandatory questions do not fit six answers", n)
	}

	networkers := make(map[string]bool, len(f.Networkers))
	for _, n := range f.Networkers {
		networkers[n.Username] = true
	}
	for _, cond := range f.NetworkerConditions {
		if !networkers[cond.Networker] {
			fail("condition: unknown networker %q", cond.Networker)
		}
		if cond.ConditionItem != nil {
			if _, ok := c.items[*cond.ConditionItem]; !ok {
				fail("condition %s: unknown item %d", cond.Networker, *cond.ConditionItem)
			}
		}
		for _, body := range []int64{cond.SuccessBody, cond.FailureBody} {
			if _, ok := c.bodies[body]; !ok {
				fail("condition %s: unknown body %d", cond.Networker, body)
			}
		}
		c.conditions[cond.Networker] = cond
	}
	for i, r := range f.NetworkerReplies {
		if r.Networker != "" && !networkers[r.Networker] {
			fail("reply #%d: unknown networker %q", i, r.Networker)
		}
		if r.TriggerBody == nil && r.TriggerAttachment == nil && r.TriggerItemObtained == nil {
			fail("reply #%d: no trigger", i)
		}
		if _, ok := c.templates[r.Template]; !ok {
			fail("reply #%d: unknown template %d", i, r.Template)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}
