// Package catalog хранит статический справочник игры: предметы, чертежи, модули,
// тела сообщений, шаблоны, вопросы и сценарии networker-персонажей.
// Каталог строится один раз при старте и дальше только читается.
package catalog

// ItemType тип предмета
type ItemType string

const (
	ItemTypeItem        ItemType = "ITEM"
	ItemTypeBadge       ItemType = "BADGE"
	ItemTypeBlueprint   ItemType = "BLUEPRINT"
	ItemTypeMasterpiece ItemType = "MASTERPIECE"
	ItemTypeModule      ItemType = "MODULE"
	ItemTypeMovie       ItemType = "MOVIE"
	ItemTypeSkin        ItemType = "SKIN"
	ItemTypeLoop        ItemType = "LOOP"
	ItemTypeSticker     ItemType = "STICKER"
)

// buildTypes допустимые типы результата чертежа
var buildTypes = map[ItemType]bool{
	ItemTypeItem:        true,
	ItemTypeBadge:       true,
	ItemTypeMasterpiece: true,
	ItemTypeModule:      true,
	ItemTypeMovie:       true,
	ItemTypeSkin:        true,
}

// EditorType вариант настроек модуля
type EditorType string

const (
	EditorSimple            EditorType = "SIMPLE"
	EditorAppearance        EditorType = "APPEARANCE"
	EditorNetworkerText     EditorType = "NETWORKER_TEXT"
	EditorNetworkerTrade    EditorType = "NETWORKER_TRADE"
	EditorRocketGame        EditorType = "ROCKET_GAME"
	EditorSoundtrack        EditorType = "SOUNDTRACK"
	EditorSticker           EditorType = "STICKER"
	EditorUGC               EditorType = "UGC"
	EditorFriendShare       EditorType = "FRIEND_SHARE"
	EditorTrioPerformance   EditorType = "TRIO_PERFORMANCE"
	EditorGroupPerformance  EditorType = "GROUP_PERFORMANCE"
	EditorTrade             EditorType = "TRADE"
	EditorLoopShoppe        EditorType = "LOOP_SHOPPE"
	EditorStickerShoppe     EditorType = "STICKER_SHOPPE"
	EditorConcertArcade     EditorType = "CONCERT_ARCADE"
	EditorDeliveryArcade    EditorType = "DELIVERY_ARCADE"
	EditorDestructoidArcade EditorType = "DESTRUCTOID_ARCADE"
	EditorHopArcade         EditorType = "HOP_ARCADE"
)

var editorTypes = map[EditorType]bool{
	EditorSimple: true, EditorAppearance: true, EditorNetworkerText: true, EditorNetworkerTrade: true,
	EditorRocketGame: true, EditorSoundtrack: true, EditorSticker: true, EditorUGC: true,
	EditorFriendShare: true, EditorTrioPerformance: true, EditorGroupPerformance: true, EditorTrade: true,
	EditorLoopShoppe: true, EditorStickerShoppe: true, EditorConcertArcade: true, EditorDeliveryArcade: true,
	EditorDestructoidArcade: true, EditorHopArcade: true,
}

// IsTrade сообщает, устроен ли вариант как обмен give/request.
// Лавки петель и стикеров тоже продают свой give за request.
func (e EditorType) IsTrade() bool {
	switch e {
	case EditorTrade, EditorNetworkerTrade, EditorLoopShoppe, EditorStickerShoppe:
		return true
	default:
		return false
	}
}

// FriendSlots число друзей, которых требует вариант
func (e EditorType) FriendSlots() int {
	switch e {
	case EditorFriendShare:
		return 1
	case EditorTrioPerformance:
		return 2
	case EditorGroupPerformance:
		return 3
	default:
		return 0
	}
}

// IsArcade сообщает, является ли вариант аркадой
func (e EditorType) IsArcade() bool {
	switch e {
	case EditorConcertArcade, EditorDeliveryArcade, EditorDestructoidArcade, EditorHopArcade:
		return true
	default:
		return false
	}
}

// ClickOutcome правило, по которому клик влияет на урожай владельца
type ClickOutcome string

const (
	OutcomeNumClicks   ClickOutcome = "NUM_CLICKS"
	OutcomeProbability ClickOutcome = "PROBABILITY"
	OutcomeBattle      ClickOutcome = "BATTLE"
	OutcomeArcade      ClickOutcome = "ARCADE"
)

// Stack пара предмет/количество
type Stack struct {
	Item int64 `yaml:"item"`
	Qty  int   `yaml:"qty"`
}

// Item описание предмета
type Item struct {
	ID       int64    `yaml:"id"`
	Name     string   `yaml:"name"`
	Type     ItemType `yaml:"type"`
	Mailable bool     `yaml:"mailable"`
}

// Blueprint рецепт: из требований получается build
type Blueprint struct {
	Item         int64   `yaml:"item"`
	Build        int64   `yaml:"build"`
	Requirements []Stack `yaml:"requirements"`
}

// HarvestYield параметры накопления урожая модуля
type HarvestYield struct {
	YieldItem      int64 `yaml:"yield_item"`
	MaxYield       int   `yaml:"max_yield"`
	YieldPerDay    int   `yaml:"yield_per_day"`
	ClicksPerYield int   `yaml:"clicks_per_yield"`
}

// GuestYield приз посетителя (исторически также "arcade prize")
type GuestYield struct {
	Item        int64 `yaml:"item"`
	Qty         int   `yaml:"qty"`
	Probability int   `yaml:"probability"`
}

// OwnerYield прибавка к урожаю владельца за клик
type OwnerYield struct {
	Qty int `yaml:"qty"`
}

// ModuleMessage шаблон, который с вероятностью отправляется при клике
type ModuleMessage struct {
	Template    int64 `yaml:"template"`
	Probability int   `yaml:"probability"`
}

// Module описание модуля, привязанное к предмету типа MODULE
type Module struct {
	Item           int64           `yaml:"item"`
	EditorType     EditorType      `yaml:"editor_type"`
	ClickOutcome   ClickOutcome    `yaml:"click_outcome"`
	Harvest        *HarvestYield   `yaml:"harvest"`
	SetupCosts     []Stack         `yaml:"setup_costs"`
	ExecutionCosts []Stack         `yaml:"execution_costs"`
	OwnerYields    []OwnerYield    `yaml:"owner_yields"`
	GuestYields    []GuestYield    `yaml:"guest_yields"`
	Messages       []ModuleMessage `yaml:"messages"`
}

// NeedsSetup сообщает, требует ли модуль настройки перед работой
func (m *Module) NeedsSetup() bool {
	switch m.EditorType {
	case EditorTrade, EditorLoopShoppe, EditorStickerShoppe, EditorNetworkerTrade,
		EditorFriendShare, EditorGroupPerformance, EditorTrioPerformance:
		return true
	}
	return len(m.SetupCosts) > 0
}

// MessageBody каталожное тело сообщения
type MessageBody struct {
	ID          int64   `yaml:"id"`
	Subject     string  `yaml:"subject"`
	Text        string  `yaml:"text"`
	EasyReplies []int64 `yaml:"easy_replies"`
}

// MessageTemplate прототип сообщения с вложениями
type MessageTemplate struct {
	ID          int64   `yaml:"id"`
	Body        int64   `yaml:"body"`
	Attachments []Stack `yaml:"attachments"`
}

// Answer вариант ответа на вопрос анкеты
type Answer struct {
	ID   int64  `yaml:"id"`
	Text string `yaml:"text"`
}

// Question вопрос анкеты "обо мне"
type Question struct {
	ID        int64    `yaml:"id"`
	Text      string   `yaml:"text"`
	Mandatory bool     `yaml:"mandatory"`
	Answers   []Answer `yaml:"answers"`
}

// Networker описание NPC-пользователя, которого создает сидер
type Networker struct {
	Username string `yaml:"username"`
	Secret   bool   `yaml:"secret"`
	Pseudo   bool   `yaml:"pseudo"`
	Avatar   string `yaml:"avatar"`
	Rank     int    `yaml:"rank"`
}

// FriendshipCondition сценарий ответа networker-а на приглашение в друзья
type FriendshipCondition struct {
	Networker     string `yaml:"networker"`
	ConditionItem *int64 `yaml:"condition_item"`
	SuccessBody   int64  `yaml:"success_body"`
	FailureBody   int64  `yaml:"failure_body"`
}

// NetworkerReply автоматический ответ шаблоном на входящий сигнал
type NetworkerReply struct {
	Networker           string `yaml:"networker"`
	TriggerBody         *int64 `yaml:"trigger_body"`
	TriggerAttachment   *int64 `yaml:"trigger_attachment"`
	TriggerItemObtained *int64 `yaml:"trigger_item_obtained"`
	Template            int64  `yaml:"template"`
}

// Catalog неизменяемый справочник
type Catalog struct {
	items      map[int64]Item
	blueprints map[int64]Blueprint
	modules    map[int64]*Module
	bodies     map[int64]MessageBody
	templates  map[int64]MessageTemplate
	questions  map[int64]Question
	answers    map[int64]int64
	conditions map[string]FriendshipCondition
	replies    []NetworkerReply
	networkers []Networker
}

func (c *Catalog) Item(id int64) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// IsType проверяет тип предмета
func (c *Catalog) IsType(id int64, t ItemType) bool {
	it, ok := c.items[id]
	return ok && it.Type == t
}

func (c *Catalog) Blueprint(item int64) (Blueprint, bool) {
	bp, ok := c.blueprints[item]
	return bp, ok
}

func (c *Catalog) Module(item int64) (*Module, bool) {
	m, ok := c.modules[item]
	return m, ok
}

func (c *Catalog) Body(id int64) (MessageBody, bool) {
	b, ok := c.bodies[id]
	return b, ok
}

func (c *Catalog) Template(id int64) (MessageTemplate, bool) {
	t, ok := c.templates[id]
	return t, ok
}

func (c *Catalog) Question(id int64) (Question, bool) {
	q, ok := c.questions[id]
	return q, ok
}

// AnswerQuestion возвращает вопрос, которому принадлежит ответ
func (c *Catalog) AnswerQuestion(answer int64) (int64, bool) {
	q, ok := c.answers[answer]
	return q, ok
}

// MandatoryQuestions обязательные вопросы анкеты
func (c *Catalog) MandatoryQuestions() []int64 {
	var out []int64
	for id, q := range c.questions {
		if q.Mandatory {
			out = append(out, id)
		}
	}
	return out
}

// EasyReplies разрешенные быстрые ответы на тело сообщения
func (c *Catalog) EasyReplies(body int64) []int64 {
	return c.bodies[body].EasyReplies
}

// IsEasyReply проверяет, разрешен ли reply как быстрый ответ на original
func (c *Catalog) IsEasyReply(original, reply int64) bool {
	for _, id := range c.bodies[original].EasyReplies {
		if id == reply {
			return true
		}
	}
	return false
}

// FriendshipCondition сценарий networker-а по имени пользователя
func (c *Catalog) FriendshipCondition(networker string) (FriendshipCondition, bool) {
	cond, ok := c.conditions[networker]
	return cond, ok
}

// Replies все автоматические ответы
func (c *Catalog) Replies() []NetworkerReply {
	return c.replies
}

// Networkers NPC-пользователи для сидера
func (c *Catalog) Networkers() []Networker {
	return c.networkers
}
