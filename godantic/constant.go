package godantic

const (
	RefName         = "$ref"
	RefPrefix       = "#/components/schemas/"
	ArrayTypePrefix = "ArrayOf" // 对于数组类型，关联到一个新模型
)

const (
	ValidationErrorName     string = "ValidationError"
	HttpValidationErrorName string = "HTTPValidationError"
)

const (
	defaultTagName     = "validate"
	bindingTagName     = "binding"
	defaultValueTag    = "default"
	descriptionTag     = "description"
	requiredTag        = "required"
	omitemptyTag       = "omitempty"
	tagSeparator       = ","
	tagKeySeparator    = "="
	validatorEnumLabel = "oneof"
)

// OpenApiDataType OpenApi 基本数据类型
type OpenApiDataType string

const (
	IntegerType OpenApiDataType = "integer"
	NumberType  OpenApiDataType = "number"
	StringType  OpenApiDataType = "string"
	BoolType    OpenApiDataType = "boolean"
	ObjectType  OpenApiDataType = "object"
	ArrayType   OpenApiDataType = "array"
	AnyType     OpenApiDataType = ""
)
