package dbc

// Kind identifies a Record variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindVersion
	KindBusConfiguration
	KindMessageDefinition
	KindMessageDescription
	KindMessageAttribute
	KindSignalDefinition
	KindSignalDescription
	KindSignalAttribute
)

var kindNames = [...]string{
	KindUnknown:            "Unknown",
	KindVersion:            "Version",
	KindBusConfiguration:   "BusConfiguration",
	KindMessageDefinition:  "MessageDefinition",
	KindMessageDescription: "MessageDescription",
	KindMessageAttribute:   "MessageAttribute",
	KindSignalDefinition:   "SignalDefinition",
	KindSignalDescription:  "SignalDescription",
	KindSignalAttribute:    "SignalAttribute",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(?)"
	}
	return kindNames[k]
}

// Record is one parsed DBC line. The set of implementations is closed:
// only the types in this file satisfy it.
type Record interface {
	Kind() Kind
	record()
}

// Version: VERSION "text"
type Version struct {
	Text string
}

// BusConfiguration: BS_: <baud>
type BusConfiguration struct {
	BaudRate uint64
}

// MessageDefinition: BO_ <id> <name>: <length> <sending node>
type MessageDefinition struct {
	/**
	* 报文id
	 */
	ID uint32
	/**
	* 报文的名字
	 */
	Name string
	/**
	* 报文长度(字节)
	 */
	Length uint32
	/**
	* 报文发送节点
	 */
	SendingNode string
}

// MessageDescription: CM_ BO_ <id> "text";
type MessageDescription struct {
	ID          uint32
	Description string
}

// MessageAttribute: BA_ "name" BO_ <id> <value>;
type MessageAttribute struct {
	Name  string
	ID    uint32
	Value string
}

// SignalDefinition: SG_ <name> : <start>|<len>@<order><sign> (scale,offset) [min|max] "unit" <receiver>
// It carries no message id; it belongs to the most recent message.
type SignalDefinition struct {
	/**
	* 信号的名字
	 */
	Name string
	/**
	* 信号起始位
	 */
	StartBit int
	/**
	* 信号长度
	 */
	BitLen int
	/**
	* 信号的字节顺序：0代表Motorola格式，1代表Inter格式
	 */
	LittleEndian bool
	/**
	* 信号的数值类型：+表示无符号数，-表示有符号数；
	 */
	Signed bool
	/**
	* 因子, 偏移量
	* 物理值=原始值*因子+偏移量；
	 */
	Scale  float32
	Offset float32
	Min    float32
	Max    float32
	/**
	* 单位
	 */
	Units string
	/**
	* 信号的接收节点 没有指定的接收节点，则必须设置为” Vector__XXX”
	 */
	ReceivingNode string
}

// SignalDescription: CM_ SG_ <id> <signal> "text";
type SignalDescription struct {
	ID          uint32
	SignalName  string
	Description string
}

// SignalAttribute: BA_ "name" SG_ <id> <signal> <value>;
type SignalAttribute struct {
	Name       string
	ID         uint32
	SignalName string
	Value      string
}

// Unknown holds a line no grammar recognised, without its terminator.
type Unknown struct {
	Text string
}

func (Version) Kind() Kind            { return KindVersion }
func (BusConfiguration) Kind() Kind   { return KindBusConfiguration }
func (MessageDefinition) Kind() Kind  { return KindMessageDefinition }
func (MessageDescription) Kind() Kind { return KindMessageDescription }
func (MessageAttribute) Kind() Kind   { return KindMessageAttribute }
func (SignalDefinition) Kind() Kind   { return KindSignalDefinition }
func (SignalDescription) Kind() Kind  { return KindSignalDescription }
func (SignalAttribute) Kind() Kind    { return KindSignalAttribute }
func (Unknown) Kind() Kind            { return KindUnknown }

func (Version) record()            {}
func (BusConfiguration) record()   {}
func (MessageDefinition) record()  {}
func (MessageDescription) record() {}
func (MessageAttribute) record()   {}
func (SignalDefinition) record()   {}
func (SignalDescription) record()  {}
func (SignalAttribute) record()    {}
func (Unknown) record()            {}
