package service

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"
)

const (
	defaultPaymentRefPrefix   = "GO"
	defaultSuffixScanLimit    = 200
	defaultAmountWindow       = 24 * time.Hour
	paymentSuffixLength       = 6
	maxReferenceCandidates    = 16
	referenceBodyMinLength    = 4
	referenceBodyMaxLength    = 6
	suffixTokenPattern        = `^[A-Z0-9]{6}$`
	referenceTokenBodyPattern = `^[A-Z0-9]{4,6}$`
)

var (
	suffixTokenRegexp   = regexp.MustCompile(suffixTokenPattern)
	referenceBodyRegexp = regexp.MustCompile(referenceTokenBodyPattern)
)

// PaymentMatchResult 回调匹配结果
type PaymentMatchResult struct {
	Order    *models.Order
	Strategy string
	Token    string
}

// PaymentMatcherOptions 匹配参数
type PaymentMatcherOptions struct {
	RefPrefix       string
	SuffixScanLimit int
	AmountWindow    time.Duration
}

// PaymentMatcher 将银行转账回调解析到唯一未支付订单
type PaymentMatcher struct {
	orderRepo       repository.OrderRepository
	refPrefix       string
	suffixScanLimit int
	amountWindow    time.Duration
	now             func() time.Time
}

// NewPaymentMatcher 创建匹配器
func NewPaymentMatcher(orderRepo repository.OrderRepository, opts PaymentMatcherOptions) *PaymentMatcher {
	prefix := strings.ToUpper(strings.TrimSpace(opts.RefPrefix))
	if prefix == "" {
		prefix = defaultPaymentRefPrefix
	}
	limit := opts.SuffixScanLimit
	if limit <= 0 {
		limit = defaultSuffixScanLimit
	}
	window := opts.AmountWindow
	if window <= 0 {
		window = defaultAmountWindow
	}
	return &PaymentMatcher{
		orderRepo:       orderRepo,
		refPrefix:       prefix,
		suffixScanLimit: limit,
		amountWindow:    window,
		now:             time.Now,
	}
}

// Match 依次尝试参考码、订单号后缀、金额+时间三种策略；未命中返回 nil
func (m *PaymentMatcher) Match(description string, amount models.Money) (*PaymentMatchResult, error) {
	words := normalizeDescription(description)

	for _, token := range m.referenceCandidates(words) {
		order, err := m.orderRepo.FindUnpaidByPaymentRef(token)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return &PaymentMatchResult{Order: order, Strategy: constants.MatchStrategyReference, Token: token}, nil
		}
	}

	if tokens := suffixCandidates(words); len(tokens) > 0 {
		result, err := m.matchBySuffix(tokens)
		if err != nil || result != nil {
			return result, err
		}
	}

	if amount > 0 {
		orders, err := m.orderRepo.ListUnpaidByAmountSince(amount, m.now().Add(-m.amountWindow))
		if err != nil {
			return nil, err
		}
		if len(orders) > 0 {
			if len(orders) > 1 {
				logger.Warnw("payment_match_amount_ambiguous",
					"amount", amount.Int64(),
					"candidates", len(orders),
					"picked_order_id", orders[0].ID,
				)
			}
			order := orders[0]
			return &PaymentMatchResult{Order: &order, Strategy: constants.MatchStrategyAmount}, nil
		}
	}
	return nil, nil
}

// matchBySuffix 仅当某个 token 在扫描窗口内唯一命中时才算匹配
func (m *PaymentMatcher) matchBySuffix(tokens []string) (*PaymentMatchResult, error) {
	orders, err := m.orderRepo.ListUnpaidRecent(m.suffixScanLimit)
	if err != nil {
		return nil, err
	}
	bySuffix := make(map[string][]int, len(orders))
	for i := range orders {
		suffix := orderNoSuffix(orders[i].OrderNo)
		if suffix == "" {
			continue
		}
		bySuffix[suffix] = append(bySuffix[suffix], i)
	}
	for _, token := range tokens {
		hits := bySuffix[token]
		if len(hits) == 1 {
			order := orders[hits[0]]
			return &PaymentMatchResult{Order: &order, Strategy: constants.MatchStrategySuffix, Token: token}, nil
		}
		if len(hits) > 1 {
			logger.Warnw("payment_match_suffix_ambiguous", "token", token, "candidates", len(hits))
		}
	}
	return nil, nil
}

// referenceCandidates 独立单词优先，其次是粘连文本中以前缀开头的子串（长到短）
func (m *PaymentMatcher) referenceCandidates(words []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, 4)
	add := func(token string) {
		if _, ok := seen[token]; ok || len(result) >= maxReferenceCandidates {
			return
		}
		seen[token] = struct{}{}
		result = append(result, token)
	}
	for _, word := range words {
		if m.isReferenceToken(word) {
			add(word)
		}
	}
	for _, word := range words {
		offset := 0
		for {
			idx := strings.Index(word[offset:], m.refPrefix)
			if idx < 0 {
				break
			}
			start := offset + idx
			bodyStart := start + len(m.refPrefix)
			for n := referenceBodyMaxLength; n >= referenceBodyMinLength; n-- {
				if bodyStart+n <= len(word) {
					add(word[start : bodyStart+n])
				}
			}
			offset = start + 1
		}
	}
	return result
}

func (m *PaymentMatcher) isReferenceToken(word string) bool {
	if !strings.HasPrefix(word, m.refPrefix) {
		return false
	}
	return referenceBodyRegexp.MatchString(word[len(m.refPrefix):])
}

// suffixCandidates 描述中全部 6 位字母数字单词，保持出现顺序
func suffixCandidates(words []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(words))
	for _, word := range words {
		if !suffixTokenRegexp.MatchString(word) {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		result = append(result, word)
	}
	return result
}

// normalizeDescription 大写并去除变音符号，非字母数字字符视为分隔符
func normalizeDescription(description string) []string {
	var b strings.Builder
	b.Grow(len(description))
	for _, r := range strings.ToUpper(description) {
		r = foldVietnamese(r)
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			// 千分位分隔符直接去掉
			continue
		default:
			b.WriteRune(' ')
		}
	}
	return strings.FieldsFunc(b.String(), unicode.IsSpace)
}

// orderNoSuffix 订单号末 6 位（大写）
func orderNoSuffix(orderNo string) string {
	orderNo = strings.ToUpper(strings.TrimSpace(orderNo))
	if len(orderNo) < paymentSuffixLength {
		return ""
	}
	return orderNo[len(orderNo)-paymentSuffixLength:]
}

var vietnameseFold = map[rune]rune{
	'Đ': 'D',
	'À': 'A', 'Á': 'A', 'Ả': 'A', 'Ã': 'A', 'Ạ': 'A',
	'Ă': 'A', 'Ằ': 'A', 'Ắ': 'A', 'Ẳ': 'A', 'Ẵ': 'A', 'Ặ': 'A',
	'Â': 'A', 'Ầ': 'A', 'Ấ': 'A', 'Ẩ': 'A', 'Ẫ': 'A', 'Ậ': 'A',
	'È': 'E', 'É': 'E', 'Ẻ': 'E', 'Ẽ': 'E', 'Ẹ': 'E',
	'Ê': 'E', 'Ề': 'E', 'Ế': 'E', 'Ể': 'E', 'Ễ': 'E', 'Ệ': 'E',
	'Ì': 'I', 'Í': 'I', 'Ỉ': 'I', 'Ĩ': 'I', 'Ị': 'I',
	'Ò': 'O', 'Ó': 'O', 'Ỏ': 'O', 'Õ': 'O', 'Ọ': 'O',
	'Ô': 'O', 'Ồ': 'O', 'Ố': 'O', 'Ổ': 'O', 'Ỗ': 'O', 'Ộ': 'O',
	'Ơ': 'O', 'Ờ': 'O', 'Ớ': 'O', 'Ở': 'O', 'Ỡ': 'O', 'Ợ': 'O',
	'Ù': 'U', 'Ú': 'U', 'Ủ': 'U', 'Ũ': 'U', 'Ụ': 'U',
	'Ư': 'U', 'Ừ': 'U', 'Ứ': 'U', 'Ử': 'U', 'Ữ': 'U', 'Ự': 'U',
	'Ỳ': 'Y', 'Ý': 'Y', 'Ỷ': 'Y', 'Ỹ': 'Y', 'Ỵ': 'Y',
}

func foldVietnamese(r rune) rune {
	if folded, ok := vietnameseFold[r]; ok {
		return folded
	}
	return r
}
