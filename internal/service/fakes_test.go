package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"shop-assist-go/internal/model"
)

// 本文件提供 service 层测试共用的内存版仓储与客户端替身。

// ---- 订单 ----

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uint][]model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uint][]model.Order)}
}

func (r *memOrderRepo) put(userID uint, order model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[userID] = append(r.orders[userID], order)
}

func (r *memOrderRepo) FindByUser(userID uint) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Order(nil), r.orders[userID]...), nil
}

func (r *memOrderRepo) FindByUserAndOrderID(userID uint, orderID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders[userID] {
		if r.orders[userID][i].OrderID == orderID {
			o := r.orders[userID][i]
			o.Products = append([]model.Product(nil), r.orders[userID][i].Products...)
			return &o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrderRepo) UpdateProduct(userID uint, orderID string, productIndex int, change model.ProductChange) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders[userID] {
		o := &r.orders[userID][i]
		if o.OrderID != orderID {
			continue
		}
		if productIndex < 0 || productIndex >= len(o.Products) {
			return nil, gorm.ErrRecordNotFound
		}
		p := &o.Products[productIndex]
		if change.Name != nil {
			p.Name = *change.Name
		}
		if change.Quantity != nil {
			p.Quantity = *change.Quantity
		}
		if change.Price != nil {
			p.Price = *change.Price
		}
		o.RecomputeTotal()
		updated := *o
		return &updated, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ---- 工单 ----

type memCaseRepo struct {
	mu        sync.Mutex
	cases     map[string]*model.Case
	responses map[string][]model.CaseResponse
}

func newMemCaseRepo() *memCaseRepo {
	return &memCaseRepo{
		cases:     make(map[string]*model.Case),
		responses: make(map[string][]model.CaseResponse),
	}
}

func (r *memCaseRepo) tripleOf(c *model.Case) string {
	return fmt.Sprintf("%d:%s:%d", c.UserID, c.OrderID, c.ProductIndex)
}

func (r *memCaseRepo) Create(c *model.Case) (*model.Case, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.cases {
		if r.tripleOf(existing) == r.tripleOf(c) {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *c
	r.cases[c.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *memCaseRepo) Save(c *model.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *c
	cp.Responses = nil
	r.cases[c.ID] = &cp
	return nil
}

func (r *memCaseRepo) FindByID(caseID string) (*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[caseID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	cp.Responses = append([]model.CaseResponse(nil), r.responses[caseID]...)
	return &cp, nil
}

func (r *memCaseRepo) FindByTriple(userID uint, orderID string, productIndex int) (*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d:%s:%d", userID, orderID, productIndex)
	for id, c := range r.cases {
		if r.tripleOf(c) == key {
			cp := *c
			cp.Responses = append([]model.CaseResponse(nil), r.responses[id]...)
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCaseRepo) AppendResponses(caseID string, responses []model.CaseResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[caseID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for _, resp := range responses {
		resp.CaseID = caseID
		resp.CreatedAt = time.Now()
		r.responses[caseID] = append(r.responses[caseID], resp)
	}
	return nil
}

func (r *memCaseRepo) ListByUser(userID uint) ([]model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Case
	for id, c := range r.cases {
		if c.UserID == userID {
			cp := *c
			cp.Responses = append([]model.CaseResponse(nil), r.responses[id]...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *memCaseRepo) ListAll(status, priority string) ([]model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Case
	for _, c := range r.cases {
		if status != "" && c.Status != status {
			continue
		}
		if priority != "" && c.Priority != priority {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// ---- 商品上下文 ----

type memContextRepo struct {
	mu       sync.Mutex
	contexts map[uint]*model.SelectedProduct
	getErr   error
}

func newMemContextRepo() *memContextRepo {
	return &memContextRepo{contexts: make(map[uint]*model.SelectedProduct)}
}

func (r *memContextRepo) Get(_ context.Context, userID uint) (*model.SelectedProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	sp, ok := r.contexts[userID]
	if !ok {
		return nil, nil
	}
	cp := *sp
	return &cp, nil
}

func (r *memContextRepo) Set(_ context.Context, userID uint, sp model.SelectedProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[userID] = &sp
	return nil
}

func (r *memContextRepo) Clear(_ context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, userID)
	return nil
}

// ---- 聊天记录 ----

type memChatLogRepo struct {
	mu      sync.Mutex
	entries map[uint][]model.ChatLogEntry
}

func newMemChatLogRepo() *memChatLogRepo {
	return &memChatLogRepo{entries: make(map[uint][]model.ChatLogEntry)}
}

func (r *memChatLogRepo) Append(_ context.Context, userID uint, entry model.ChatLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[userID] = append(r.entries[userID], entry)
	return nil
}

func (r *memChatLogRepo) List(_ context.Context, userID uint) ([]model.ChatLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatLogEntry(nil), r.entries[userID]...), nil
}

func (r *memChatLogRepo) SetCaseID(_ context.Context, userID uint, index int, caseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.entries[userID]) {
		return errors.New("chat log index out of range")
	}
	r.entries[userID][index].CaseID = caseID
	return nil
}

func (r *memChatLogRepo) Clear(_ context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
	return nil
}

// ---- 用户与会话 ----

type memUserRepo struct {
	mu    sync.Mutex
	users map[uint]model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uint]model.User)}
}

func (r *memUserRepo) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == 0 {
		user.ID = uint(len(r.users) + 1)
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) FindByEmail(email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUserRepo) FindByID(userID uint) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := u
	return &cp, nil
}

func (r *memUserRepo) Update(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) FindWithPagination(offset, limit int) ([]model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []model.User
	for _, u := range r.users {
		all = append(all, u)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uint]model.User
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uint]model.User)}
}

func (r *memSessionRepo) Get(_ context.Context, userID uint) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (r *memSessionRepo) Set(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[user.ID] = user
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

// ---- FAQ ----

type memFAQRepo struct {
	mu     sync.Mutex
	faqs   []model.FAQ
	nextID uint
}

func newMemFAQRepo() *memFAQRepo {
	return &memFAQRepo{nextID: 1}
}

func (r *memFAQRepo) Create(faq *model.FAQ) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	faq.ID = r.nextID
	r.nextID++
	r.faqs = append(r.faqs, *faq)
	return nil
}

func (r *memFAQRepo) FindAll() ([]model.FAQ, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FAQ(nil), r.faqs...), nil
}

func (r *memFAQRepo) FindByQuestionAndDomain(question, domain string) (*model.FAQ, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.faqs {
		if r.faqs[i].Question == question && r.faqs[i].Domain == domain {
			cp := r.faqs[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// mustEncodeVec 把向量编码成 FAQ.Embedding 的存储格式。
func mustEncodeVec(vec []float32) string {
	data, err := json.Marshal(vec)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// ---- 向量化与生成客户端 ----

// stubEmbedder 按预置表返回向量，查不到时返回 err（默认 nil 向量）。
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *stubEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0}, nil
}

// stubGenerator 按注入的函数生成回复。
type stubGenerator struct {
	mu       sync.Mutex
	calls    int
	generate func(prompt string) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.generate(prompt)
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// stubFAQService 返回固定的匹配结果。
type stubFAQService struct {
	answer string
	ok     bool
	err    error
}

func (s *stubFAQService) Match(context.Context, string) (string, bool, error) {
	return s.answer, s.ok, s.err
}

func (s *stubFAQService) Seed(context.Context, []model.FAQ) error {
	return nil
}
