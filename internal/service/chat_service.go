package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"shop-assist-go/internal/model"
	"shop-assist-go/internal/repository"
	"shop-assist-go/pkg/genai"
	"shop-assist-go/pkg/log"
)

// 用户消息中触发兜底建单的意图关键词。生成模型并不总能可靠地
// 输出指令，这组关键词是最后一道安全网，不是指令解析的替代品。
var caseIntentKeywords = []string{
	"create case", "report issue", "problem with", "complaint",
	"refund", "return", "defective", "delivery issue",
}

// directiveOnlyReply 在模型回复里除指令对象外没有任何文字时兜底展示。
const directiveOnlyReply = "I've filed a support case for this issue. Our team will follow up with you shortly."

// ChatService 定义了聊天编排的对外接口。
type ChatService interface {
	// HandleChatTurn 处理一轮对话：生成回复，并按需建立/更新工单。
	// 只要上游模型给出了回复，就一定把回复返回给用户——工单簿记
	// 失败只进日志。
	HandleChatTurn(ctx context.Context, userID uint, message string) (string, error)
	// SelectProduct 设置用户本轮会话针对的商品上下文。
	SelectProduct(ctx context.Context, userID uint, orderID string, productIndex int) error
	// ClearSelection 清除用户的商品上下文。
	ClearSelection(ctx context.Context, userID uint) error
	// History 返回用户的聊天记录。
	History(ctx context.Context, userID uint) ([]model.ChatLogEntry, error)
}

type chatService struct {
	contextRepo repository.ContextRepository
	chatLogRepo repository.ChatLogRepository
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	faqService  FAQService
	genClient   genai.Client
	caseService CaseService

	historyTurns int

	// tripleLocks 串行化同一三元组上“折叠聊天记录 + upsert 工单 + 回填”
	// 的整个区间，双击提交不会把同一轮对话折叠两次。
	mu          sync.Mutex
	tripleLocks map[string]*sync.Mutex
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	contextRepo repository.ContextRepository,
	chatLogRepo repository.ChatLogRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	faqService FAQService,
	genClient genai.Client,
	caseService CaseService,
	historyTurns int,
) ChatService {
	return &chatService{
		contextRepo:  contextRepo,
		chatLogRepo:  chatLogRepo,
		orderRepo:    orderRepo,
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		faqService:   faqService,
		genClient:    genClient,
		caseService:  caseService,
		historyTurns: historyTurns,
		tripleLocks:  make(map[string]*sync.Mutex),
	}
}

// SelectProduct 校验 (orderID, productIndex) 在用户的订单上有效后写入上下文。
// 校验用的是数据库的最新数据，下标越界直接拒绝，不做截断。
func (s *chatService) SelectProduct(ctx context.Context, userID uint, orderID string, productIndex int) error {
	order, err := s.orderRepo.FindByUserAndOrderID(userID, orderID)
	if err != nil {
		return ErrInvalidOrderOrProduct
	}
	product := order.ProductAt(productIndex)
	if product == nil {
		return ErrInvalidOrderOrProduct
	}
	return s.contextRepo.Set(ctx, userID, model.SelectedProduct{
		OrderID:      orderID,
		ProductIndex: productIndex,
		ProductName:  product.Name,
		SelectedAt:   time.Now(),
	})
}

// ClearSelection 清除用户的商品上下文。
func (s *chatService) ClearSelection(ctx context.Context, userID uint) error {
	return s.contextRepo.Clear(ctx, userID)
}

// History 返回用户的聊天记录。
func (s *chatService) History(ctx context.Context, userID uint) ([]model.ChatLogEntry, error) {
	return s.chatLogRepo.List(ctx, userID)
}

// HandleChatTurn 按状态机处理一轮对话：
// 上下文检查 → FAQ 短路 → 拼装 prompt → 生成 → 指令抽取 → 校验与落库 → 记录并返回。
// 回复生成之前的任何失败都让本轮失败且不产生写入；生成之后的失败
// （工单簿记）被吞掉只记日志，用户总能拿到回复。
func (s *chatService) HandleChatTurn(ctx context.Context, userID uint, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	// 1. 上下文检查。缓存读失败与未选择同样处理：这是建议性缓存，
	// 不可用时按“没有上下文”回退。
	sp, err := s.contextRepo.Get(ctx, userID)
	if err != nil {
		log.Warnf("[ChatService] 读取商品上下文失败, userId=%d: %v", userID, err)
		sp = nil
	}
	if sp == nil {
		return "", ErrNoProductSelected
	}

	// 2. FAQ 短路。FAQ 答案便宜且确定，不该被昂贵又不稳定的生成回复
	// 遮蔽。向量化不可用只降级为未命中。
	if answer, ok := s.tryFAQ(ctx, message); ok {
		s.appendLog(ctx, userID, model.ChatLogEntry{
			Prompt:       message,
			Reply:        answer,
			OrderID:      sp.OrderID,
			ProductIndex: sp.ProductIndex,
			CreatedAt:    time.Now(),
		})
		return answer, nil
	}

	// 3. 拼装 prompt。商品上下文按数据库最新数据展开；上下文已失效
	//（订单被改、下标越界）等同于没有上下文。
	order, err := s.orderRepo.FindByUserAndOrderID(userID, sp.OrderID)
	if err != nil || order.ProductAt(sp.ProductIndex) == nil {
		log.Warnf("[ChatService] 商品上下文已失效, userId=%d, orderId=%s, index=%d", userID, sp.OrderID, sp.ProductIndex)
		_ = s.contextRepo.Clear(ctx, userID)
		return "", ErrNoProductSelected
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("加载用户信息失败: %w", err)
	}
	history, err := s.chatLogRepo.List(ctx, userID)
	if err != nil {
		// 历史记录是锦上添花，读不到就不带
		log.Warnf("[ChatService] 读取聊天历史失败, userId=%d: %v", userID, err)
		history = nil
	}
	prompt := s.buildPrompt(user, order, sp, history, message)

	// 4. 生成。此前没有任何写入，失败即整轮失败。
	rawReply, err := s.genClient.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, genai.ErrInvalidRequest) || errors.Is(err, genai.ErrAuthFailed) {
			// 配置级错误，需要运维关注
			log.Errorf("[ChatService] 生成服务拒绝请求（配置问题）: %v", err)
		} else {
			log.Errorf("[ChatService] 生成回复失败, userId=%d: %v", userID, err)
		}
		return "", ErrGenerationFailed
	}

	// 5. 指令抽取。模型偶尔只输出指令对象不带任何文字，
	// 这种情况用固定话术兜底，原始 JSON 永远不展示给用户。
	cleanReply, directive := ExtractDirective(rawReply)
	if cleanReply == "" {
		if directive != nil {
			cleanReply = directiveOnlyReply
		} else {
			cleanReply = rawReply
		}
	}

	// 6. 校验与落库。从这里开始的失败不再影响给用户的回复。
	caseID := s.maybeFileCase(ctx, userID, message, cleanReply, directive, sp)

	// 7. 记录并返回。
	s.appendLog(ctx, userID, model.ChatLogEntry{
		Prompt:       message,
		Reply:        cleanReply,
		OrderID:      sp.OrderID,
		ProductIndex: sp.ProductIndex,
		CaseID:       caseID,
		CreatedAt:    time.Now(),
	})
	return cleanReply, nil
}

// tryFAQ 查询 FAQ 匹配，任何错误都降级为未命中。
func (s *chatService) tryFAQ(ctx context.Context, message string) (string, bool) {
	answer, ok, err := s.faqService.Match(ctx, message)
	if err != nil {
		log.Warnf("[ChatService] FAQ 匹配失败，按未命中处理: %v", err)
		return "", false
	}
	return answer, ok
}

// loadUser 优先读会话缓存，未命中回源数据库并回填缓存。
func (s *chatService) loadUser(ctx context.Context, userID uint) (*model.User, error) {
	if cached, err := s.sessionRepo.Get(ctx, userID); err == nil && cached != nil {
		return cached, nil
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Set(ctx, *user); err != nil {
		log.Warnf("[ChatService] 回填用户缓存失败, userId=%d: %v", userID, err)
	}
	return user, nil
}

// buildPrompt 拼装结构化 prompt：用户身份、选中商品、最近历史、指令说明。
func (s *chatService) buildPrompt(user *model.User, order *model.Order, sp *model.SelectedProduct, history []model.ChatLogEntry, message string) string {
	var b strings.Builder
	b.WriteString("You are a helpful e-commerce customer support assistant.\n\n")

	b.WriteString("Customer:\n")
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n\n", user.Name, user.Email)

	product := order.ProductAt(sp.ProductIndex)
	b.WriteString("Selected product (this conversation is about this item):\n")
	fmt.Fprintf(&b, "Order ID: %s\nOrder Status: %s\nPayment Method: %s\nTotal Amount: %.2f\nOrder Date: %s\n",
		order.OrderID, order.Status, order.PaymentMethod, order.TotalAmount, order.OrderDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Product #%d: %s (Qty: %d, Price: %.2f, Domain: %s)\n",
		sp.ProductIndex, product.Name, product.Quantity, product.Price, product.Domain)
	fmt.Fprintf(&b, "Expected Delivery: %s\nDelivery Address: %s, Pincode: %s\n\n",
		order.ExpectedDeliveryDate.Format("2006-01-02"), order.DeliveryAddress, order.DeliveryPincode)

	if n := len(history); n > 0 {
		start := n - s.historyTurns
		if start < 0 {
			start = 0
		}
		b.WriteString("Chat History:\n")
		for _, entry := range history[start:] {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", entry.Prompt, entry.Reply)
		}
	}

	b.WriteString("Instructions:\n")
	b.WriteString("- Answer based only on the customer's data and orders above.\n")
	b.WriteString("- If the customer reports an issue that needs a support case (damaged item, refund, wrong delivery, etc.), ")
	b.WriteString("append at the very end of your reply, on its own line and WITHOUT code fences, a single JSON object with exactly these keys: ")
	b.WriteString(`{"createCase": true, "orderId": "<order id>", "productIndex": <index>, "description": "<short issue summary>", "priority": "high" or "low"}` + "\n")
	b.WriteString("- If you cannot match the question to the selected product, ask the customer to clarify instead of guessing.\n\n")

	fmt.Fprintf(&b, "User Query: %q\n", message)
	return b.String()
}

// maybeFileCase 执行校验与落库阶段，返回本轮关联的工单 ID（没有则为空串）。
// 本方法内的一切失败都只记日志——用户没有写过指令，不能把指令层面的
// 错误抛给用户。
func (s *chatService) maybeFileCase(ctx context.Context, userID uint, message, cleanReply string, directive *CaseDirective, sp *model.SelectedProduct) string {
	if directive == nil {
		// 兜底：模型没给指令，但用户消息带着明确的建单意图且点名了
		// 选中的商品，就用消息本身作为描述合成一条指令。
		if !hasCaseIntent(message) || !strings.Contains(strings.ToLower(message), strings.ToLower(sp.ProductName)) {
			return ""
		}
		directive = &CaseDirective{
			CreateCase:   true,
			OrderID:      sp.OrderID,
			ProductIndex: sp.ProductIndex,
			Description:  message,
		}
	}

	// 用数据库最新的订单数据重新校验指令，过期或越界的指令静默丢弃。
	order, err := s.orderRepo.FindByUserAndOrderID(userID, directive.OrderID)
	if err != nil {
		log.Warnf("[ChatService] 丢弃指令：订单不存在, userId=%d, orderId=%s", userID, directive.OrderID)
		return ""
	}
	if order.ProductAt(directive.ProductIndex) == nil {
		log.Warnf("[ChatService] 丢弃指令：商品下标越界, userId=%d, orderId=%s, index=%d (products=%d)",
			userID, directive.OrderID, directive.ProductIndex, len(order.Products))
		return ""
	}

	priority := directive.Priority
	if priority == "" {
		priority = ClassifyPriority(directive.Description)
	}

	// 折叠 + upsert + 回填在同一把三元组锁内完成，保证同一轮记录
	// 至多折叠一次。
	l := s.lockTriple(userID, directive.OrderID, directive.ProductIndex)
	l.Lock()
	defer l.Unlock()

	responses, foldIndices := s.collectUnresolved(ctx, userID, directive.OrderID, directive.ProductIndex)
	responses = append(responses,
		model.CaseResponse{Message: "User: " + message},
		model.CaseResponse{Message: "Bot: " + cleanReply},
	)

	filed, created, err := s.caseService.OpenOrUpdate(ctx, CaseUpsertParams{
		UserID:       userID,
		OrderID:      directive.OrderID,
		ProductIndex: directive.ProductIndex,
		Description:  directive.Description,
		Priority:     priority,
		Responses:    responses,
	})
	if err != nil {
		log.Errorf("[ChatService] 工单落库失败（回复照常返回）, userId=%d, orderId=%s: %v", userID, directive.OrderID, err)
		return ""
	}
	if created {
		log.Infof("[ChatService] 已创建工单 %s (priority=%s)", filed.ID, filed.Priority)
	}

	// 回填已折叠记录的工单 ID，后续轮次不会重复折叠。
	for _, idx := range foldIndices {
		if err := s.chatLogRepo.SetCaseID(ctx, userID, idx, filed.ID); err != nil {
			log.Errorf("[ChatService] 回填聊天记录工单 ID 失败, userId=%d, index=%d: %v", userID, idx, err)
		}
	}
	return filed.ID
}

// collectUnresolved 收集该三元组下尚未折叠进工单的历史记录，
// 转换为 "User:"/"Bot:" 成对回复，并返回它们在列表中的下标用于回填。
func (s *chatService) collectUnresolved(ctx context.Context, userID uint, orderID string, productIndex int) ([]model.CaseResponse, []int) {
	entries, err := s.chatLogRepo.List(ctx, userID)
	if err != nil {
		log.Warnf("[ChatService] 读取待折叠聊天记录失败, userId=%d: %v", userID, err)
		return nil, nil
	}
	var responses []model.CaseResponse
	var indices []int
	for i, entry := range entries {
		if entry.CaseID != "" || entry.OrderID != orderID || entry.ProductIndex != productIndex {
			continue
		}
		responses = append(responses,
			model.CaseResponse{Message: "User: " + entry.Prompt},
			model.CaseResponse{Message: "Bot: " + entry.Reply},
		)
		indices = append(indices, i)
	}
	return responses, indices
}

// appendLog 追加聊天记录；失败只记日志，不影响回复返回。
func (s *chatService) appendLog(ctx context.Context, userID uint, entry model.ChatLogEntry) {
	if err := s.chatLogRepo.Append(ctx, userID, entry); err != nil {
		log.Errorf("[ChatService] 写入聊天记录失败, userId=%d: %v", userID, err)
	}
}

func (s *chatService) lockTriple(userID uint, orderID string, productIndex int) *sync.Mutex {
	key := fmt.Sprintf("%d:%s:%d", userID, orderID, productIndex)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.tripleLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.tripleLocks[key] = l
	}
	return l
}

// hasCaseIntent 判断用户消息是否包含建单意图关键词。
func hasCaseIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range caseIntentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
