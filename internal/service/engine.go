package service

import (
	"context"
	"sync/atomic"
	"time"

	"MLNCoreService/internal/catalog"
	"MLNCoreService/internal/clock"
	"MLNCoreService/internal/models"
	"MLNCoreService/internal/repository/postgres"

	"go.uber.org/zap"
)

// UnitOfWork выполняет операции ядра над хранилищем.
// Реализуется postgres.Store и postgres.ResilientStore.
type UnitOfWork interface {
	Transaction(ctx context.Context, operation string, fn func(repo *postgres.Repository) error) error
	Read(ctx context.Context, operation string, fn func(repo *postgres.Repository) error) error
}

// PageCache описывает read model в кэше. Сбои кэша не должны проваливать операцию,
// поэтому методы не возвращают ошибок.
type PageCache interface {
	GetPage(ctx context.Context, ownerID int64, asOwner bool) (*models.PageView, bool)
	SetPage(ctx context.Context, page *models.PageView, asOwner bool)
	GetInbox(ctx context.Context, userID int64) ([]models.MessageView, bool)
	SetInbox(ctx context.Context, userID int64, inbox []models.MessageView)
	Invalidate(ctx context.Context, userIDs ...int64)
}

// Notifier доставляет webhook-и после фиксации транзакции
type Notifier interface {
	Dispatch(deliveries []Delivery)
}

// Service ядро игры: каждая операция выполняется одной транзакцией
type Service struct {
	uow      UnitOfWork
	cache    PageCache
	notifier Notifier
	catalog  *catalog.Catalog
	clock    clock.Clock
	rng      clock.Random
	logger   *zap.Logger
	epochs   *cacheEpochs
}

// Option настраивает Service
type Option func(*Service)

// WithCache подключает кэш страниц и входящих
func WithCache(cache PageCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithNotifier подключает доставку webhook-ов
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock подменяет часы
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithRandom подменяет генератор случайных чисел
func WithRandom(r clock.Random) Option {
	return func(s *Service) {
		s.rng = r
	}
}

// NewService создает новый экземпляр Service
func NewService(uow UnitOfWork, cat *catalog.Catalog, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		uow:      uow,
		cache:    noCache{},
		notifier: noNotifier{},
		catalog:  cat,
		clock:    clock.System{},
		rng:      clock.NewRandom(time.Now().UnixNano()),
		logger:   logger,
		epochs:   &cacheEpochs{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog возвращает справочник, с которым работает сервис
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

type noCache struct{}

func (noCache) GetPage(context.Context, int64, bool) (*models.PageView, bool) { return nil, false }
func (noCache) SetPage(context.Context, *models.PageView, bool) {}
func (noCache) GetInbox(context.Context, int64) ([]models.MessageView, bool) { return nil, false }
func (noCache) SetInbox(context.Context, int64, []models.MessageView) {}
func (noCache) Invalidate(context.Context, ...int64) {}

// cacheEpochs счетчики инвалидаций, разложенные по пользователям. Представление,
// прочитанное до инвалидации, не должно пережить ее в кэше.
type cacheEpochs struct {
	slots [256]atomic.Uint64
}

func (e *cacheEpochs) slot(userID int64) *atomic.Uint64 {
	return &e.slots[uint64(userID)%uint64(len(e.slots))]
}

func (e *cacheEpochs) bump(userIDs ...int64) {
	for _, id := range userIDs {
		e.slot(id).Add(1)
	}
}

func (e *cacheEpochs) load(userID int64) uint64 {
	return e.slot(userID).Load()
}

// storeView кладет прочитанное представление в кэш, если за время чтения пользователь
// не инвалидировался. Инвалидация между записью и повторной проверкой удаляет запись.
func (s *Service) storeView(ctx context.Context, userID int64, epoch uint64, store func()) {
	if s.epochs.load(userID) != epoch {
		s.logger.Debug("Skipping cache fill after concurrent write", zap.Int64("user_id", userID))
		return
	}
	store()
	if s.epochs.load(userID) != epoch {
		s.cache.Invalidate(ctx, userID)
	}
}

type noNotifier struct{}

func (noNotifier) Dispatch([]Delivery) {}

// event исходящее событие для webhook-ов владельца
type event struct {
	owner   int64
	kind    string
	payload any
}

// inboundMail письмо человека networker-у, на которое может сработать автоответ
type inboundMail struct {
	networkerID int64
	senderID    int64
	bodyID      int64
	items       []int64
}

// itemObtained предмет, полученный человеком из письма networker-а
type itemObtained struct {
	networkerID int64
	userID      int64
	itemID      int64
}

// outbox копит побочные эффекты транзакции до коммита
type outbox struct {
	dirty      map[int64]struct{}
	events     []event
	deliveries []Delivery
	inbound    []inboundMail
	obtained   []itemObtained
}

func newOutbox() *outbox {
	return &outbox{dirty: make(map[int64]struct{})}
}

func (o *outbox) touch(ids ...int64) {
	for _, id := range ids {
		o.dirty[id] = struct{}{}
	}
}

func (o *outbox) dirtyIDs() []int64 {
	ids := make([]int64, 0, len(o.dirty))
	for id := range o.dirty {
		ids = append(ids, id)
	}
	return ids
}

type outboxMark struct {
	events, inbound, obtained int
}

func (o *outbox) mark() outboxMark {
	return outboxMark{events: len(o.events), inbound: len(o.inbound), obtained: len(o.obtained)}
}

func (o *outbox) rollback(m outboxMark) {
	o.events = o.events[:m.events]
	o.inbound = o.inbound[:m.inbound]
	o.obtained = o.obtained[:m.obtained]
}

// txn состояние одной операции ядра внутри транзакции
type txn struct {
	*Service
	ctx      context.Context
	repo     *postgres.Repository
	now      time.Time
	out      *outbox
	profiles map[int64]*models.Profile
	names    map[int64]string
}

func (s *Service) newTxn(ctx context.Context, repo *postgres.Repository) *txn {
	return &txn{
		Service:  s,
		ctx:      ctx,
		repo:     repo,
		now:      s.clock.Now(),
		out:      newOutbox(),
		profiles: make(map[int64]*models.Profile),
		names:    make(map[int64]string),
	}
}

// run выполняет изменяющую операцию в транзакции и после коммита разбирает outbox
func (s *Service) run(ctx context.Context, operation string, fn func(t *txn) error) error {
	var out *outbox
	err := s.uow.Transaction(ctx, operation, func(repo *postgres.Repository) error {
		t := s.newTxn(ctx, repo)
		out = t.out
		if err := fn(t); err != nil {
			return err
		}
		return t.resolveWebhooks()
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, out)
	return nil
}

// read выполняет операцию только для чтения
func (s *Service) read(ctx context.Context, operation string, fn func(t *txn) error) error {
	return s.uow.Read(ctx, operation, func(repo *postgres.Repository) error {
		return fn(s.newTxn(ctx, repo))
	})
}

// afterCommit инвалидирует кэш, запускает автоответы networker-ов и отправляет webhook-и.
// Отмена исходного запроса на эти шаги не влияет.
func (s *Service) afterCommit(ctx context.Context, out *outbox) {
	ctx = context.WithoutCancel(ctx)

	dirty := out.dirtyIDs()
	s.epochs.bump(dirty...)
	s.cache.Invalidate(ctx, dirty...)

	for _, in := range out.inbound {
		s.replyToMail(ctx, in)
	}
	for _, ob := range out.obtained {
		s.replyToItemObtained(ctx, ob)
	}

	if len(out.deliveries) > 0 {
		s.notifier.Dispatch(out.deliveries)
	}
}

// savepoint выполняет fn во вложенной транзакции; при ошибке откатываются и изменения, и события
func (t *txn) savepoint(fn func(t *txn) error) error {
	mark := t.out.mark()
	err := t.repo.Savepoint(func(repo *postgres.Repository) error {
		nested := *t
		nested.repo = repo
		return fn(&nested)
	})
	if err != nil {
		t.out.rollback(mark)
		// Профили могли измениться внутри откаченной точки сохранения
		t.profiles = make(map[int64]*models.Profile)
	}
	return err
}

// emit ставит событие в очередь webhook-ов владельца
func (t *txn) emit(owner int64, kind string, payload any) {
	t.out.events = append(t.out.events, event{owner: owner, kind: kind, payload: payload})
}

// resolveWebhooks подбирает подписки на события до коммита, в том же снимке данных
func (t *txn) resolveWebhooks() error {
	for _, ev := range t.out.events {
		hooks, err := t.repo.WebhooksFor(ev.owner, ev.kind)
		if err != nil {
			return err
		}
		for _, hook := range hooks {
			d := Delivery{
				Event:   ev.kind,
				URL:     hook.URL,
				Secret:  hook.Secret,
				Payload: ev.payload,
			}
			if hook.TokenID != nil {
				token, err := t.repo.Token(*hook.TokenID)
				if err == nil {
					d.Token = token.AccessToken
				}
			}
			t.out.deliveries = append(t.out.deliveries, d)
		}
	}
	return nil
}

// profile возвращает профиль для чтения флагов; результат кэшируется в пределах операции
func (t *txn) profile(userID int64) (*models.Profile, error) {
	if p, ok := t.profiles[userID]; ok {
		return p, nil
	}
	p, err := t.repo.Profile(userID)
	if err != nil {
		return nil, err
	}
	t.profiles[userID] = p
	return p, nil
}

// lockProfile блокирует профиль для изменения
func (t *txn) lockProfile(userID int64) (*models.Profile, error) {
	p, err := t.repo.ProfileForUpdate(userID)
	if err != nil {
		return nil, err
	}
	t.profiles[userID] = p
	return p, nil
}

func (t *txn) isNetworker(userID int64) (bool, error) {
	p, err := t.profile(userID)
	if err != nil {
		return false, err
	}
	return p.IsNetworker, nil
}

func (t *txn) username(userID int64) (string, error) {
	if name, ok := t.names[userID]; ok {
		return name, nil
	}
	u, err := t.repo.UserByID(userID)
	if err != nil {
		return "", err
	}
	t.names[userID] = u.Username
	return u.Username, nil
}
