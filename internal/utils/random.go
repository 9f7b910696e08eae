package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateEmailLocalPart 用姓名的拼音加随机数字作为邮箱前缀，例如 王伟 -> wangw42
func GenerateEmailLocalPart(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	localPart := ""

	for i, py := range pinyinArray {
		if i == 0 {
			localPart += py
			continue
		}
		length := rand.Intn(len(py)) + 1
		localPart += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		localPart += string(digits[rand.Intn(len(digits))])
	}

	return localPart
}

var mobilePrefixes = []string{"130", "135", "138", "150", "158", "177", "186", "189"}

func GenerateRandomMobile() string {
	return mobilePrefixes[rand.Intn(len(mobilePrefixes))] + fmt.Sprintf("%08d", rand.Intn(100000000))
}

var companyRegions = []string{"广州", "深圳", "珠海", "佛山", "东莞"}
var companyIndustries = []string{"科技", "贸易", "建设", "物流", "传媒", "医疗"}

func GenerateRandomCompany() string {
	return companyRegions[rand.Intn(len(companyRegions))] +
		commonNameCharacters[rand.Intn(len(commonNameCharacters))] +
		commonNameCharacters[rand.Intn(len(commonNameCharacters))] +
		companyIndustries[rand.Intn(len(companyIndustries))] + "有限公司"
}

var contractKinds = []string{"采购合同", "服务合同", "租赁合同", "技术开发合同", "保密协议", "框架协议"}

func GenerateRandomContractTitle(company string) string {
	return company + contractKinds[rand.Intn(len(contractKinds))]
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func GenerateRandomID(letterLength int, digitLength int) string {
	randomID := make([]rune, letterLength+digitLength)
	for i := range randomID {
		if i < letterLength {
			randomID[i] = letters[rand.Intn(len(letters))]
		} else {
			randomID[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(randomID)
}
